// Package mcp exposes read-only league tools to MCP clients.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/service"
	jsoniter "github.com/json-iterator/go"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StandingsArgs selects a league.
type StandingsArgs struct {
	LeagueID string `json:"league_id" jsonschema:"League id (required)"`
}

// PeriodScoreArgs selects one team's period.
type PeriodScoreArgs struct {
	LeagueID string `json:"league_id" jsonschema:"League id (required)"`
	TeamID   string `json:"team_id" jsonschema:"Team id (required)"`
	Period   int    `json:"period" jsonschema:"Scoring period, starting at 1"`
}

// ValidateLineupArgs is a candidate lineup to check without storing it.
type ValidateLineupArgs struct {
	LeagueID    string              `json:"league_id" jsonschema:"League id (required)"`
	TeamID      string              `json:"team_id" jsonschema:"Team id (required)"`
	Period      int                 `json:"period" jsonschema:"Scoring period, starting at 1"`
	Assignments []league.Assignment `json:"assignments" jsonschema:"Slot to player assignments"`
}

// Server wraps an MCP server backed by the league service.
type Server struct {
	leagues *service.LeagueService
	server  *mcp.Server
	logger  zerolog.Logger
}

// NewServer registers the league tools.
func NewServer(leagues *service.LeagueService, version string, logger zerolog.Logger) *Server {
	s := &Server{
		leagues: leagues,
		server: mcp.NewServer(
			&mcp.Implementation{
				Name:    "gridiron",
				Version: version,
			},
			nil,
		),
		logger: logger,
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "standings",
		Description: "Season standings over the finalized periods of a league",
	}, s.standings)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "period_score",
		Description: "Per-player breakdown of a team's score for one period",
	}, s.periodScore)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "validate_lineup",
		Description: "Check a lineup against the league's slot template without saving it",
	}, s.validateLineup)

	return s
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

func (s *Server) standings(ctx context.Context, req *mcp.CallToolRequest, args StandingsArgs) (*mcp.CallToolResult, any, error) {
	if args.LeagueID == "" {
		return toolError(fmt.Errorf("league_id is required")), nil, nil
	}
	report, err := s.leagues.Standings(ctx, args.LeagueID)
	if err != nil {
		return s.fail("standings", err), nil, nil
	}
	return toolJSON(report)
}

func (s *Server) periodScore(ctx context.Context, req *mcp.CallToolRequest, args PeriodScoreArgs) (*mcp.CallToolResult, any, error) {
	if args.LeagueID == "" || args.TeamID == "" {
		return toolError(fmt.Errorf("league_id and team_id are required")), nil, nil
	}
	score, err := s.leagues.PeriodScore(ctx, args.LeagueID, args.TeamID, args.Period)
	if err != nil && !service.IsValidation(err) {
		return s.fail("period_score", err), nil, nil
	}
	return toolJSON(score)
}

func (s *Server) validateLineup(ctx context.Context, req *mcp.CallToolRequest, args ValidateLineupArgs) (*mcp.CallToolResult, any, error) {
	if args.LeagueID == "" || args.TeamID == "" {
		return toolError(fmt.Errorf("league_id and team_id are required")), nil, nil
	}
	res, err := s.leagues.ValidateLineup(ctx, args.LeagueID, args.TeamID, args.Period, args.Assignments)
	if err != nil {
		return s.fail("validate_lineup", err), nil, nil
	}
	violations := res.Violations
	if violations == nil {
		violations = []league.Violation{}
	}
	return toolJSON(map[string]interface{}{
		"valid":      res.Valid(),
		"violations": violations,
		"scoring":    res.Scoring,
	})
}

func (s *Server) fail(tool string, err error) *mcp.CallToolResult {
	s.logger.Debug().Err(err).Str("tool", tool).Msg("tool call failed")
	return toolError(err)
}

func toolJSON(v interface{}) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
