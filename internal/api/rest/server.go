// Package rest exposes the league service over HTTP.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/gridiron/internal/replay"
	"github.com/fortuna/gridiron/internal/service"
	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Options configures the optional parts of the server.
type Options struct {
	CORSOrigins []string

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	// Checks are run by the health endpoints, keyed by dependency name.
	Checks map[string]func(context.Context) error

	// Status reports background components on /api/v1/status.
	Status map[string]func() map[string]interface{}

	Logger zerolog.Logger
}

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler http.Handler
}

// NewServer creates a new REST API server
func NewServer(port string, leagues *service.LeagueService, replays *replay.Service, opts Options) *Server {
	handler := NewHandler(leagues, opts.Logger)
	handler.checks = opts.Checks
	handler.status = opts.Status
	replayHandler := NewReplayHandler(replays)

	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(opts.Logger))
	router.Use(LoggingMiddleware(opts.Logger))

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	if opts.MCP != nil {
		router.PathPrefix("/mcp").Handler(opts.MCP)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health-check", handler.HealthCheck).Methods("GET")
	api.HandleFunc("/status", handler.Status).Methods("GET")

	// Rule sets
	api.HandleFunc("/rule-sets", handler.PublishRuleSet).Methods("POST")
	api.HandleFunc("/rule-sets", handler.ListRuleSets).Methods("GET")
	api.HandleFunc("/rule-sets/{ruleSetID}/versions/{version:[0-9]+}", handler.GetRuleSet).Methods("GET")
	api.HandleFunc("/rule-sets/{ruleSetID}/diff", handler.DiffRuleSets).Methods("GET")

	// Players
	api.HandleFunc("/players/{playerID}", handler.UpsertPlayer).Methods("PUT")
	api.HandleFunc("/players/{playerID}", handler.GetPlayer).Methods("GET")

	// Leagues
	api.HandleFunc("/leagues", handler.CreateLeague).Methods("POST")
	api.HandleFunc("/leagues", handler.ListLeagues).Methods("GET")
	api.HandleFunc("/leagues/{leagueID}", handler.GetLeague).Methods("GET")
	api.HandleFunc("/leagues/{leagueID}/rule-set", handler.BindRuleSet).Methods("POST")
	api.HandleFunc("/leagues/{leagueID}/standings", handler.GetStandings).Methods("GET")

	// Teams
	api.HandleFunc("/leagues/{leagueID}/teams", handler.ListTeams).Methods("GET")
	api.HandleFunc("/leagues/{leagueID}/teams/{teamID}", handler.UpsertTeam).Methods("PUT")
	api.HandleFunc("/leagues/{leagueID}/teams/{teamID}/periods/{period:[0-9]+}/roster", handler.SetRoster).Methods("PUT")
	api.HandleFunc("/leagues/{leagueID}/teams/{teamID}/periods/{period:[0-9]+}/lineup", handler.SubmitLineup).Methods("POST")
	api.HandleFunc("/leagues/{leagueID}/teams/{teamID}/periods/{period:[0-9]+}/lineup/validate", handler.ValidateLineup).Methods("POST")
	api.HandleFunc("/leagues/{leagueID}/teams/{teamID}/periods/{period:[0-9]+}/score", handler.GetPeriodScore).Methods("GET")

	// Periods
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}", handler.GetPeriod).Methods("GET")
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}/scores", handler.GetLeaguePeriod).Methods("GET")
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}/schedule", handler.SetSchedule).Methods("PUT")
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}/inactive", handler.SetInactive).Methods("PUT")
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}/lock", handler.SetLock).Methods("PUT")
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}/finalize", handler.FinalizePeriod).Methods("POST")
	api.HandleFunc("/leagues/{leagueID}/periods/{period:[0-9]+}/reopen", handler.ReopenPeriod).Methods("POST")

	// Stat ingestion
	api.HandleFunc("/stats", handler.IngestStats).Methods("POST")

	// Replay operations
	if replays != nil {
		api.HandleFunc("/replays", replayHandler.HandleReplayRequest).Methods("POST")
		api.HandleFunc("/replays/status", replayHandler.HandleReplayStatus).Methods("GET")
		api.HandleFunc("/replays/{jobID}", replayHandler.HandleReplayJob).Methods("GET")
	}

	// CORS wraps the router so preflight requests are answered before
	// method matching.
	root := cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})(router)

	return &Server{
		port:    port,
		handler: root,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
