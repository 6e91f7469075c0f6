package analysis

// Stage identifies one step of the pipeline.
type Stage int

const (
	StageLoad Stage = iota
	StageEmbed
	StageCluster
	StageSynthesize
	StagePersist
	StageDone
)

// String returns the stage name for logs and run records.
func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageEmbed:
		return "embed"
	case StageCluster:
		return "cluster"
	case StageSynthesize:
		return "synthesize"
	case StagePersist:
		return "persist"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// nextStage routes the pipeline. The topology is a straight line with one
// shortcut: once a fatal error is recorded, everything up to Persist is
// skipped, because Persist must run regardless so every run leaves an
// auditable record. Pure so it can be tested as a table.
func nextStage(cur Stage, fatal bool) Stage {
	if fatal && cur < StagePersist {
		return StagePersist
	}
	switch cur {
	case StageLoad:
		return StageEmbed
	case StageEmbed:
		return StageCluster
	case StageCluster:
		return StageSynthesize
	case StageSynthesize:
		return StagePersist
	default:
		return StageDone
	}
}
