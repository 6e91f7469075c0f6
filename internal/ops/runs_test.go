package ops

import (
	"fmt"
	"testing"

	"snipsense/internal/errors"
	"snipsense/internal/stats"
)

func seedRuns(t *testing.T, env *Env, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		run := &stats.Run{
			ID:         fmt.Sprintf("01RUN%02d", i),
			StartedAt:  int64(100 + i),
			FinishedAt: int64(105 + i),
		}
		if err := env.Stats.InsertRun(run, nil); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}
}

func TestRuns_ListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	seedRuns(t, env, 3)

	out, err := Runs(env, RunsInput{})
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if out.Total != 3 || len(out.Runs) != 3 {
		t.Fatalf("got %d runs, total %d; want 3/3", len(out.Runs), out.Total)
	}
	if out.Runs[0].ID != "01RUN02" {
		t.Errorf("first run = %s, want the newest", out.Runs[0].ID)
	}
}

func TestRuns_Limit(t *testing.T) {
	env := newTestEnv(t)
	seedRuns(t, env, 5)

	out, err := Runs(env, RunsInput{Limit: 2})
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(out.Runs) != 2 {
		t.Errorf("got %d runs, want 2", len(out.Runs))
	}
	if out.Total != 5 {
		t.Errorf("Total = %d, want 5", out.Total)
	}
}

func TestRuns_NoStatsStore(t *testing.T) {
	env := newTestEnv(t)
	env.Stats = nil

	out, err := Runs(env, RunsInput{})
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(out.Runs) != 0 || out.Total != 0 {
		t.Error("want empty output without a stats store")
	}
}

func TestRun_WithSuggestions(t *testing.T) {
	env := newTestEnv(t)

	run := &stats.Run{ID: "01RUNA", StartedAt: 100, FinishedAt: 110, SuggestionCount: 1}
	suggestions := []stats.Suggestion{{
		ID:          "01SUGA",
		RunID:       "01RUNA",
		Trigger:     "-writeemail",
		Replacement: "Write a professional email",
		SourceTexts: []string{"write an email to my boss", "write a short email"},
		Confidence:  0.9,
		CreatedAt:   110,
	}}
	if err := env.Stats.InsertRun(run, suggestions); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	out, err := Run(env, RunInput{ID: "01RUNA"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Run.ID != "01RUNA" {
		t.Errorf("Run.ID = %s", out.Run.ID)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0].Trigger != "-writeemail" {
		t.Errorf("Suggestions = %+v", out.Suggestions)
	}
}

func TestRun_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := Run(env, RunInput{ID: "missing"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestRun_EmptyID(t *testing.T) {
	env := newTestEnv(t)

	_, err := Run(env, RunInput{ID: "  "})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("err = %v, want INVALID_REQUEST", err)
	}
}
