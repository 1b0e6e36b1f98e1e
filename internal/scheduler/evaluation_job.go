package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/trogers1052/recommendation-performance/internal/models"
	"github.com/trogers1052/recommendation-performance/internal/performance"
)

// Evaluator runs evaluation for one user or for performance.AllUsers
type Evaluator interface {
	RunEvaluation(ctx context.Context, userID string) (*models.EvaluationRunResult, error)
}

// EvaluationJob evaluates every user's open recommendations
type EvaluationJob struct {
	evaluator Evaluator
	timeout   time.Duration
	log       zerolog.Logger
}

// NewEvaluationJob creates the all-users evaluation job. A zero timeout
// leaves runs unbounded.
func NewEvaluationJob(evaluator Evaluator, timeout time.Duration, log zerolog.Logger) *EvaluationJob {
	return &EvaluationJob{
		evaluator: evaluator,
		timeout:   timeout,
		log:       log.With().Str("job", "evaluation").Logger(),
	}
}

// Name returns the job name
func (j *EvaluationJob) Name() string {
	return "evaluation"
}

// Run executes one all-users evaluation run. A disabled service is not a
// failure; a run that counted errors is.
func (j *EvaluationJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	result, err := j.evaluator.RunEvaluation(ctx, performance.AllUsers)
	if errors.Is(err, performance.ErrDisabled) {
		j.log.Debug().Msg("Performance tracking disabled, skipping run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("evaluation run failed: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("evaluation run finished with %d errors", result.Errors)
	}
	return nil
}
