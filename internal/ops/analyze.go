package ops

import (
	"context"

	"snipsense/internal/analysis"
	"snipsense/internal/errors"
)

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct{}

// AnalyzeOutput contains the result of the Analyze operation.
type AnalyzeOutput struct {
	Result *analysis.Result `json:"result"`
}

// Analyze executes one analysis run synchronously. It fails fast when there
// is no credential or the log is empty rather than starting a run that can
// only record a fatal error.
func Analyze(ctx context.Context, env *Env, input AnalyzeInput) (*AnalyzeOutput, error) {
	if env.Run == nil || !env.Secrets.Has() {
		return nil, errors.NewMissingCredential()
	}

	count, err := env.Log.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.NewNothingToAnalyze()
	}

	res, err := env.Run(ctx)
	if err != nil {
		return nil, err
	}
	return &AnalyzeOutput{Result: res}, nil
}
