package consumer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/fortuna/gridiron/internal/ingest"
	"github.com/fortuna/gridiron/internal/league"
	"github.com/fortuna/gridiron/internal/logging"
	"github.com/fortuna/gridiron/internal/service"
)

type fakeIngester struct {
	calls  [][]ingest.RawStatRecord
	failed []service.BatchError
}

func (f *fakeIngester) Ingest(_ context.Context, records []ingest.RawStatRecord) service.IngestReport {
	f.calls = append(f.calls, records)
	return service.IngestReport{Received: len(records), Appended: len(records), Failed: f.failed}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		want    int
		wantErr bool
	}{
		{"single", map[string]interface{}{"data": `{"league_id":"l1","period":1,"player_id":"p","stat":"td","count":2}`}, 1, false},
		{"array", map[string]interface{}{"data": ` [{"league_id":"l1","period":1,"player_id":"p","stat":"td","count":2},{"league_id":"l1","period":1,"player_id":"q","stat":"td","count":1}]`}, 2, false},
		{"missing field", map[string]interface{}{"payload": "{}"}, 0, true},
		{"bad json", map[string]interface{}{"data": `{"league_id":`}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("len(Decode()) = %d, want %d", len(got), tt.want)
			}
		})
	}

	got, _ := Decode(map[string]interface{}{"data": `{"league_id":"l1","period":3,"player_id":"p","stat":"Receptions","count":-1,"key":"fix"}`})
	want := ingest.RawStatRecord{LeagueID: "l1", Period: 3, PlayerID: "p", Stat: "Receptions", Count: -1, Key: "fix"}
	if got[0] != want {
		t.Errorf("Decode() = %+v, want %+v", got[0], want)
	}
}

func TestProcess_OneIngestPerBatch(t *testing.T) {
	fake := &fakeIngester{}
	c := NewStreamConsumer(nil, fake, "gridiron.stats.raw", "g", "c", logging.Nop())

	report := c.Process(context.Background(), []Message{
		{ID: "1-0", Records: []ingest.RawStatRecord{{LeagueID: "l1", Period: 1, PlayerID: "a", Stat: "td", Count: 1}}},
		{ID: "2-0", Records: []ingest.RawStatRecord{
			{LeagueID: "l1", Period: 1, PlayerID: "b", Stat: "td", Count: 1},
			{LeagueID: "l2", Period: 1, PlayerID: "c", Stat: "td", Count: 1},
		}},
	})

	if len(fake.calls) != 1 {
		t.Fatalf("Ingest calls = %d, want 1", len(fake.calls))
	}
	if len(fake.calls[0]) != 3 || report.Received != 3 {
		t.Errorf("records = %d, Received = %d, want 3", len(fake.calls[0]), report.Received)
	}
}

func TestAckable(t *testing.T) {
	messages := []Message{
		{ID: "1-0", Records: []ingest.RawStatRecord{{LeagueID: "l1", Period: 1, PlayerID: "a", Stat: "td", Count: 1}}},
		{ID: "2-0", Records: []ingest.RawStatRecord{
			{LeagueID: "l1", Period: 2, PlayerID: "b", Stat: "td", Count: 1},
			{LeagueID: "l2", Period: 1, PlayerID: "c", Stat: "td", Count: 1},
		}},
		{ID: "3-0", Records: []ingest.RawStatRecord{{LeagueID: "l2", Period: 1, PlayerID: "d", Stat: "td", Count: 1}}},
	}

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"no failure", nil, []string{"1-0", "2-0", "3-0"}},
		{"store unavailable", errors.New("appending 2 events: connection refused"), []string{"1-0"}},
		{"unknown league", fmt.Errorf("league l2: %w", league.ErrNotFound), []string{"1-0", "2-0", "3-0"}},
		{"finalized period", fmt.Errorf("period 1: %w", league.ErrPeriodFinalized), []string{"1-0", "2-0", "3-0"}},
		{"out of range", league.ErrPeriodOutOfRange, []string{"1-0", "2-0", "3-0"}},
		{"no rule set", &league.StaleRuleSetReference{LeagueID: "l2"}, []string{"1-0", "2-0", "3-0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeIngester{}
			if tt.err != nil {
				fake.failed = []service.BatchError{{LeagueID: "l2", Period: 1, Reason: tt.err.Error(), Err: tt.err}}
			}
			c := NewStreamConsumer(nil, fake, "gridiron.stats.raw", "g", "c", logging.Nop())

			got := ackable(messages, c.Process(context.Background(), messages))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ackable() = %v, want %v", got, tt.want)
			}
		})
	}
}
