package cache

import (
	"context"
	"reflect"
	"testing"

	"github.com/fortuna/gridiron/internal/league"
	"github.com/shopspring/decimal"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	scores := []league.PeriodScore{{
		LeagueID: "l1",
		TeamID:   "t1",
		Period:   2,
		Total:    decimal.RequireFromString("19.22"),
		Players: []league.PlayerScore{
			{PlayerID: "p1", Slot: "QB", Points: decimal.RequireFromString("19.22")},
		},
	}}

	if _, ok, _ := c.Get(ctx, "l1", 2, "fp1"); ok {
		t.Fatal("Get() on empty cache hit")
	}
	if err := c.Put(ctx, "l1", 2, "fp1", scores); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "l1", 2, "fp1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, want hit", ok, err)
	}
	if !got[0].Total.Equal(scores[0].Total) || got[0].Players[0].PlayerID != "p1" {
		t.Errorf("Get() = %+v, want %+v", got, scores)
	}

	if _, ok, _ := c.Get(ctx, "l1", 2, "fp2"); ok {
		t.Error("Get() with a different fingerprint hit")
	}

	if err := c.Invalidate(ctx, "l1", 1, 2, 3); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_ReencodesIdentically(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	scores := []league.PeriodScore{{LeagueID: "l1", TeamID: "t1", Period: 1, Total: decimal.RequireFromString("7.5")}}

	want, _ := json.Marshal(scores)
	_ = c.Put(ctx, "l1", 1, "fp", scores)
	got, _, _ := c.Get(ctx, "l1", 1, "fp")
	gotBytes, _ := json.Marshal(got)

	if !reflect.DeepEqual(gotBytes, want) {
		t.Errorf("re-encoded = %s, want %s", gotBytes, want)
	}
}
