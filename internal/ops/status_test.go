package ops

import (
	"testing"

	"snipsense/internal/promptlog"
	"snipsense/internal/stats"
)

func TestStatus_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := Status(env, StatusInput{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if out.CredentialConfigured {
		t.Error("CredentialConfigured should be false")
	}
	if out.EntryCount != 0 || out.ArchiveCount != 0 || out.RunCount != 0 {
		t.Errorf("counts = %d/%d/%d, want zeros", out.EntryCount, out.ArchiveCount, out.RunCount)
	}
	if out.LastRun != nil {
		t.Error("LastRun should be nil with no runs")
	}
	if out.Agent != nil {
		t.Error("Agent should be nil without a live controller")
	}
	if out.DataDir != env.DataDir {
		t.Errorf("DataDir = %q", out.DataDir)
	}
}

func TestStatus_CountsAndLastRun(t *testing.T) {
	env := newTestEnv(t)

	if err := env.Secrets.Set("sk-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	seedEntries(t, env, 3, promptlog.SourceCapture)

	run := &stats.Run{ID: "01RUN", StartedAt: 100, FinishedAt: 105, EntryCount: 3}
	if err := env.Stats.InsertRun(run, nil); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	out, err := Status(env, StatusInput{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !out.CredentialConfigured {
		t.Error("CredentialConfigured should be true")
	}
	if out.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", out.EntryCount)
	}
	if out.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", out.RunCount)
	}
	if out.LastRun == nil || out.LastRun.ID != "01RUN" {
		t.Errorf("LastRun = %+v, want run 01RUN", out.LastRun)
	}
}

func TestStatus_NoStatsStore(t *testing.T) {
	env := newTestEnv(t)
	env.Stats = nil

	out, err := Status(env, StatusInput{})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if out.RunCount != 0 || out.LastRun != nil {
		t.Error("run info should be empty without a stats store")
	}
}
