package ops

import (
	"fmt"

	"snipsense/internal/errors"
	"snipsense/internal/promptlog"
)

// ArchivesInput contains parameters for the Archives operation.
type ArchivesInput struct{}

// ArchivesOutput contains the result of the Archives operation.
type ArchivesOutput struct {
	Archives []promptlog.ArchiveInfo `json:"archives"`
}

// Archives lists archived prompt logs, newest first.
func Archives(env *Env, input ArchivesInput) (*ArchivesOutput, error) {
	archives, err := env.Log.Archives()
	if err != nil {
		return nil, err
	}
	return &ArchivesOutput{Archives: archives}, nil
}

// PruneArchivesInput contains parameters for the PruneArchives operation.
type PruneArchivesInput struct {
	Keep *int // archives to retain; nil uses the configured default
}

// PruneArchivesOutput contains the result of the PruneArchives operation.
type PruneArchivesOutput struct {
	Removed int    `json:"removed"`
	Kept    int    `json:"kept"`
	Message string `json:"message"`
}

// PruneArchives deletes all but the newest archives.
func PruneArchives(env *Env, input PruneArchivesInput) (*PruneArchivesOutput, error) {
	keep := env.Cfg.ArchiveKeep
	if input.Keep != nil {
		keep = *input.Keep
	}
	if keep < 0 {
		return nil, errors.NewInvalidRequest("keep must not be negative")
	}

	removed, err := env.Log.PruneArchives(keep)
	if err != nil {
		return nil, err
	}

	remaining, err := env.Log.Archives()
	if err != nil {
		return nil, err
	}

	message := "No archives to prune"
	if removed > 0 {
		word := "archive"
		if removed > 1 {
			word = "archives"
		}
		message = fmt.Sprintf("Removed %d %s, kept %d", removed, word, len(remaining))
	}

	return &PruneArchivesOutput{
		Removed: removed,
		Kept:    len(remaining),
		Message: message,
	}, nil
}
