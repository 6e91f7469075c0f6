package ops

import (
	"snipsense/internal/agent"
	"snipsense/internal/stats"
)

// StatusInput contains parameters for the Status operation.
type StatusInput struct{}

// StatusOutput describes the agent's overall state: credential, log sizes,
// and the most recent analysis run. Agent is present only when the process
// hosts a live controller.
type StatusOutput struct {
	DataDir              string          `json:"data_dir"`
	CredentialConfigured bool            `json:"credential_configured"`
	Provider             string          `json:"provider"`
	EntryCount           int             `json:"entry_count"`
	ArchiveCount         int             `json:"archive_count"`
	RunCount             int             `json:"run_count"`
	LastRun              *stats.Run      `json:"last_run,omitempty"`
	Agent                *agent.Snapshot `json:"agent,omitempty"`
}

// Status reports the current agent state.
func Status(env *Env, input StatusInput) (*StatusOutput, error) {
	entryCount, err := env.Log.Count()
	if err != nil {
		return nil, err
	}

	archives, err := env.Log.Archives()
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{
		DataDir:              env.DataDir,
		CredentialConfigured: env.Secrets.Has(),
		Provider:             env.Cfg.Provider,
		EntryCount:           entryCount,
		ArchiveCount:         len(archives),
	}

	if env.Stats != nil {
		runCount, err := env.Stats.CountRuns()
		if err != nil {
			return nil, err
		}
		out.RunCount = runCount

		last, err := env.Stats.LatestRun()
		if err != nil {
			return nil, err
		}
		out.LastRun = last
	}

	if env.Agent != nil {
		snap := env.Agent.Snapshot()
		out.Agent = &snap
	}

	return out, nil
}
