// Package analysis runs the five-stage pipeline over the prompt log:
// load → embed → cluster → synthesize → persist. Stages are driven by an
// explicit stage value and a pure routing function; a fatal error skips
// straight to persist so the log is still archived and the run recorded.
package analysis

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"snipsense/internal/cluster"
	"snipsense/internal/config"
	"snipsense/internal/embedcache"
	"snipsense/internal/llmclient"
	"snipsense/internal/promptlog"
	"snipsense/internal/snippet"
	"snipsense/internal/stats"
)

// Embedding pairs one log entry's text with its vector. OriginalIndex points
// back into the loaded entry snapshot.
type Embedding struct {
	Text          string
	Vector        []float32
	OriginalIndex int
}

// Result is the outcome of one pipeline run. Stage errors never escape the
// pipeline; they are collected here.
type Result struct {
	RunID           string               `json:"run_id"`
	StartedAt       time.Time            `json:"started_at"`
	Duration        time.Duration        `json:"-"`
	DurationMS      int64                `json:"duration_ms"`
	EntryCount      int                  `json:"entry_count"`
	ClusterCount    int                  `json:"cluster_count"`
	Suggestions     []snippet.Suggestion `json:"suggestions"`
	Fatal           string               `json:"fatal,omitempty"`
	Errors          []string             `json:"errors,omitempty"`
	ArchivePath     string               `json:"archive_path,omitempty"`
	ArchivesRemoved int                  `json:"archives_removed,omitempty"`
}

// Runner executes pipeline runs. Client may be nil (no credential: the embed
// stage records a fatal error); Cache and Stats are optional.
type Runner struct {
	Log    *promptlog.Store
	Client llmclient.Client
	Cache  *embedcache.Cache
	Stats  *stats.Store
	Cfg    *config.Config

	// LockDir, when set, holds the cross-process run lock for the duration
	// of the run.
	LockDir string

	// sleep is the inter-batch/inter-cluster delay hook.
	sleep func(time.Duration)
}

// New creates a runner.
func New(logStore *promptlog.Store, client llmclient.Client, cache *embedcache.Cache, statsStore *stats.Store, cfg *config.Config, lockDir string) *Runner {
	return &Runner{
		Log:     logStore,
		Client:  client,
		Cache:   cache,
		Stats:   statsStore,
		Cfg:     cfg,
		LockDir: lockDir,
		sleep:   time.Sleep,
	}
}

// runState is the pipeline's working state: each stage fills its own slot
// and may record one fatal error or any number of non-fatal ones.
type runState struct {
	entries     []promptlog.Entry
	embeddings  []Embedding
	clusters    []cluster.Cluster
	suggestions []snippet.Suggestion

	fatal  error
	errs   []string
	result Result
}

func (st *runState) fail(stage Stage, err error) {
	st.fatal = fmt.Errorf("%s: %w", stage, err)
}

func (st *runState) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("analysis: %s", msg)
	st.errs = append(st.errs, msg)
}

// Run executes one full pipeline run. The returned error covers only
// invocation-level failures (the cross-process lock being held); everything
// that happens inside the stages lands in the Result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.LockDir != "" {
		release, err := acquireRunLock(r.LockDir)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	if r.sleep == nil {
		r.sleep = time.Sleep
	}

	started := time.Now()
	runID := newULID(started)
	log.Printf("analysis: run %s starting", runID)

	st := &runState{}
	for stage := StageLoad; stage != StageDone; stage = nextStage(stage, st.fatal != nil) {
		switch stage {
		case StageLoad:
			r.load(st)
		case StageEmbed:
			r.embed(ctx, st)
		case StageCluster:
			r.clusterStage(st)
		case StageSynthesize:
			r.synthesize(ctx, st)
		case StagePersist:
			r.persist(runID, started, st)
		}
	}

	res := st.result
	res.RunID = runID
	res.StartedAt = started
	res.Duration = time.Since(started)
	res.DurationMS = res.Duration.Milliseconds()
	res.EntryCount = len(st.entries)
	res.ClusterCount = len(st.clusters)
	res.Suggestions = st.suggestions
	if st.fatal != nil {
		res.Fatal = st.fatal.Error()
		res.Errors = append([]string{st.fatal.Error()}, st.errs...)
	} else {
		res.Errors = st.errs
	}

	log.Printf("analysis: run %s finished: %d entries, %d clusters, %d suggestions, %d errors",
		runID, res.EntryCount, res.ClusterCount, len(res.Suggestions), len(res.Errors))
	return &res, nil
}

// load snapshots the prompt log. The snapshot is the run's working set;
// entries captured after this point belong to the next run.
func (r *Runner) load(st *runState) {
	entries, err := r.Log.Entries()
	if err != nil {
		// Read failures degrade to empty rather than propagating.
		st.warn("load: reading prompt log: %v", err)
		entries = nil
	}
	if len(entries) == 0 {
		st.fail(StageLoad, fmt.Errorf("nothing to analyze"))
		return
	}
	st.entries = entries
}

// embed turns entry texts into vectors, in batches, consulting the embedding
// cache first. Any batch failure is fatal to the stage: partial embeddings
// would silently skew clustering.
func (r *Runner) embed(ctx context.Context, st *runState) {
	if r.Client == nil {
		st.fail(StageEmbed, fmt.Errorf("no API credential configured"))
		return
	}

	// Entries too short to embed are excluded, not failed.
	type candidate struct {
		text string
		idx  int
	}
	var candidates []candidate
	for i, e := range st.entries {
		if utf8.RuneCountInString(e.Text) >= r.Cfg.MinPromptChars {
			candidates = append(candidates, candidate{text: e.Text, idx: i})
		}
	}
	if len(candidates) == 0 {
		st.fail(StageEmbed, fmt.Errorf("no entries long enough to embed"))
		return
	}

	batchSize := r.Cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	delay := time.Duration(r.Cfg.BatchDelayMillis) * time.Millisecond
	model := r.Client.EmbedModel()

	for start := 0; start < len(candidates); start += batchSize {
		end := min(start+batchSize, len(candidates))
		batch := candidates[start:end]

		// Cache hits are filled immediately; only misses go to the API.
		vectors := make([][]float32, len(batch))
		var missTexts []string
		var missPos []int
		for i, c := range batch {
			if r.Cache != nil {
				if vec, ok := r.Cache.Get(model, c.text); ok {
					vectors[i] = vec
					continue
				}
			}
			missTexts = append(missTexts, c.text)
			missPos = append(missPos, i)
		}

		if len(missTexts) > 0 {
			got, err := r.Client.Embed(ctx, missTexts)
			if err != nil {
				st.fail(StageEmbed, err)
				return
			}
			if len(got) != len(missTexts) {
				st.fail(StageEmbed, fmt.Errorf("got %d vectors for %d texts", len(got), len(missTexts)))
				return
			}
			for i, vec := range got {
				vectors[missPos[i]] = vec
				if r.Cache != nil {
					if err := r.Cache.Put(model, missTexts[i], vec); err != nil {
						st.warn("embed: cache put: %v", err)
					}
				}
			}
		}

		for i, c := range batch {
			st.embeddings = append(st.embeddings, Embedding{
				Text:          c.text,
				Vector:        vectors[i],
				OriginalIndex: c.idx,
			})
		}

		if end < len(candidates) && delay > 0 {
			r.sleep(delay)
		}
	}
}

// clusterStage groups the embeddings.
func (r *Runner) clusterStage(st *runState) {
	items := make([]cluster.Item, len(st.embeddings))
	for i, e := range st.embeddings {
		items[i] = cluster.Item{Text: e.Text, Vector: e.Vector}
	}
	st.clusters = cluster.Group(items, cluster.Config{
		Threshold:      r.Cfg.SimilarityThreshold,
		MinClusterSize: r.Cfg.MinClusterSize,
		MaxClusters:    r.Cfg.MaxClusters,
	})
}

// synthesize asks the completion model for one replacement per cluster. One
// cluster failing — a call error, an unparseable reply — skips that cluster
// only; the rest of the run continues.
func (r *Runner) synthesize(ctx context.Context, st *runState) {
	delay := time.Duration(r.Cfg.BatchDelayMillis) * time.Millisecond

	for i, cl := range st.clusters {
		if i > 0 && delay > 0 {
			r.sleep(delay)
		}

		resp, err := r.Client.Complete(ctx, snippet.BuildPrompt(cl.Members))
		if err != nil {
			st.warn("synthesize: cluster %d (size %d): %v", i, cl.Size(), err)
			continue
		}

		parsed, err := snippet.ParseResponse(resp)
		if err != nil {
			st.warn("synthesize: cluster %d: %v", i, err)
			continue
		}

		trigger := snippet.DeriveTrigger(parsed.Replacement, r.Cfg.TriggerPrefix)
		if !snippet.IsValidTrigger(trigger, r.Cfg.TriggerPrefix) {
			st.warn("synthesize: cluster %d: derived trigger %q is invalid", i, trigger)
			continue
		}

		st.suggestions = append(st.suggestions, snippet.Suggestion{
			Trigger:     trigger,
			Replacement: parsed.Replacement,
			SourceTexts: cl.Members,
			Confidence:  snippet.Score(parsed.Label, cl.Members),
		})
	}
}

// persist always runs, fatal or not: record the run in the stats store when
// one is configured, archive the processed log, prune old archives. Problems
// here are recorded, never thrown.
func (r *Runner) persist(runID string, started time.Time, st *runState) {
	finished := time.Now()

	// Suggestion IDs are assigned at persist time.
	for i := range st.suggestions {
		st.suggestions[i].ID = newULID(finished)
	}

	if r.Stats != nil {
		run := &stats.Run{
			ID:              runID,
			StartedAt:       started.Unix(),
			FinishedAt:      finished.Unix(),
			DurationMS:      finished.Sub(started).Milliseconds(),
			EntryCount:      len(st.entries),
			ClusterCount:    len(st.clusters),
			SuggestionCount: len(st.suggestions),
			Errors:          st.errs,
		}
		if st.fatal != nil {
			msg := st.fatal.Error()
			run.Fatal = &msg
		}

		rows := make([]stats.Suggestion, len(st.suggestions))
		for i, sg := range st.suggestions {
			rows[i] = stats.Suggestion{
				ID:          sg.ID,
				RunID:       runID,
				Trigger:     sg.Trigger,
				Replacement: sg.Replacement,
				SourceTexts: sg.SourceTexts,
				Confidence:  sg.Confidence,
				CreatedAt:   finished.Unix(),
			}
		}

		if err := r.Stats.InsertRun(run, rows); err != nil {
			st.warn("persist: recording run: %v", err)
		}
	}

	archivePath, err := r.Log.ArchiveAndReset()
	if err != nil {
		st.warn("persist: archiving log: %v", err)
	}
	st.result.ArchivePath = archivePath

	if r.Cfg.ArchiveKeep > 0 {
		removed, err := r.Log.PruneArchives(r.Cfg.ArchiveKeep)
		if err != nil {
			st.warn("persist: pruning archives: %v", err)
		}
		st.result.ArchivesRemoved = removed
	}
}

// newULID builds a ULID for run and suggestion IDs.
func newULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// rand.Reader failing is not a recoverable situation.
		panic(err)
	}
	return id.String()
}
