package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"snipsense/internal/analysis"
	"snipsense/internal/errors"
)

// scriptedClient returns identical vectors so every prompt lands in one
// cluster, and a well-formed synthesis reply.
type scriptedClient struct{}

func (scriptedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "Replacement: Write a professional email\nConfidence: HIGH", nil
}

func (scriptedClient) Name() string { return "scripted" }

func (scriptedClient) EmbedModel() string { return "test-embed" }

func (scriptedClient) Close() error { return nil }

// TestFullWorkflow exercises the complete agent lifecycle through the ops
// layer: configure → log → analyze → inspect runs and suggestions → prune.
func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t)
	runner := analysis.New(env.Log, scriptedClient{}, nil, env.Stats, env.Cfg, "")
	env.Run = runner.Run

	ctx := context.Background()

	// 1. No credential: analyze refuses.
	_, err := Analyze(ctx, env, AnalyzeInput{})
	require.True(t, errors.Is(err, errors.ErrMissingCredential))

	// 2. Configure the credential.
	_, err = CredentialSet(env, CredentialSetInput{Value: "sk-workflow"})
	require.NoError(t, err)

	// 3. Empty log: analyze still refuses.
	_, err = Analyze(ctx, env, AnalyzeInput{})
	require.True(t, errors.Is(err, errors.ErrNothingToAnalyze))

	// 4. Log three similar prompts.
	for _, text := range []string{
		"write an email to my manager about the delay",
		"write a polite email to the vendor",
		"write an email asking for a status update",
	} {
		_, err = Log(env, LogInput{Text: text})
		require.NoError(t, err)
	}

	statusOut, err := Status(env, StatusInput{})
	require.NoError(t, err)
	require.Equal(t, 3, statusOut.EntryCount)
	require.True(t, statusOut.CredentialConfigured)

	// 5. Analyze: one cluster, one suggestion.
	analyzeOut, err := Analyze(ctx, env, AnalyzeInput{})
	require.NoError(t, err)
	res := analyzeOut.Result
	require.Empty(t, res.Fatal)
	require.Equal(t, 3, res.EntryCount)
	require.Equal(t, 1, res.ClusterCount)
	require.Len(t, res.Suggestions, 1)
	require.Equal(t, "-writeemail", res.Suggestions[0].Trigger)
	require.Equal(t, "Write a professional email", res.Suggestions[0].Replacement)

	// 6. The processed log was archived.
	entriesOut, err := Entries(env, EntriesInput{})
	require.NoError(t, err)
	require.Empty(t, entriesOut.Entries)

	archivesOut, err := Archives(env, ArchivesInput{})
	require.NoError(t, err)
	require.Len(t, archivesOut.Archives, 1)

	// 7. The run and its suggestions are on record.
	runsOut, err := Runs(env, RunsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, runsOut.Total)
	require.Equal(t, res.RunID, runsOut.Runs[0].ID)

	runOut, err := Run(env, RunInput{ID: res.RunID})
	require.NoError(t, err)
	require.Len(t, runOut.Suggestions, 1)
	require.Equal(t, "-writeemail", runOut.Suggestions[0].Trigger)

	suggestionsOut, err := Suggestions(env, SuggestionsInput{})
	require.NoError(t, err)
	require.Len(t, suggestionsOut.Suggestions, 1)

	statusOut, err = Status(env, StatusInput{})
	require.NoError(t, err)
	require.Equal(t, 1, statusOut.RunCount)
	require.NotNil(t, statusOut.LastRun)
	require.Equal(t, res.RunID, statusOut.LastRun.ID)

	// 8. Prune everything and drop the credential.
	pruneOut, err := PruneArchives(env, PruneArchivesInput{Keep: intPtr(0)})
	require.NoError(t, err)
	require.Equal(t, 1, pruneOut.Removed)

	_, err = CredentialDelete(env, CredentialDeleteInput{})
	require.NoError(t, err)
	require.False(t, env.Secrets.Has())
}

// TestWorkflow_ManualEntriesSurviveFailedRun verifies that a run ending in a
// fatal error still archives the log and records the run.
func TestWorkflow_ManualEntriesFlowThroughFailedRun(t *testing.T) {
	env := newTestEnv(t)
	runner := analysis.New(env.Log, nil, nil, env.Stats, env.Cfg, "")
	env.Run = runner.Run

	require.NoError(t, env.Secrets.Set("sk-workflow"))

	_, err := Log(env, LogInput{Text: "summarize the meeting notes for me"})
	require.NoError(t, err)

	// The runner has no client, so the embed stage records a fatal error,
	// but the ops call itself succeeds and the log is still archived.
	out, err := Analyze(context.Background(), env, AnalyzeInput{})
	require.NoError(t, err)
	require.NotEmpty(t, out.Result.Fatal)
	require.Len(t, out.Result.Errors, 1)

	entries, err := Entries(env, EntriesInput{})
	require.NoError(t, err)
	require.Empty(t, entries.Entries)

	runs, err := Runs(env, RunsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, runs.Total)
	require.NotNil(t, runs.Runs[0].Fatal)
}
