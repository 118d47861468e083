package provisioning

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// Step is one reconciler call inside a workflow. Run reports ok=false for
// a completed step that deserves a warning (resource reused, file
// overwritten, nothing launched).
type Step struct {
	Name string
	Run  func(ctx context.Context) (bool, error)

	// ContinueOnError lets later steps run after this one fails.
	ContinueOnError bool
}

// StepResult records the outcome of one Step.
type StepResult struct {
	Name     string
	OK       bool
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Report aggregates step outcomes of a multi-resource operation.
type Report struct {
	Steps []StepResult
}

// OK reports whether every step ran and succeeded.
func (r *Report) OK() bool {
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// Err combines the errors of all failed steps.
func (r *Report) Err() error {
	var err error
	for _, s := range r.Steps {
		err = multierr.Append(err, s.Err)
	}
	return err
}

// Merge appends the steps of other, prefixing their names.
func (r *Report) Merge(prefix string, other *Report) {
	for _, s := range other.Steps {
		s.Name = prefix + "/" + s.Name
		r.Steps = append(r.Steps, s)
	}
}

// RunSteps executes steps sequentially. A failing step stops the run
// unless it sets ContinueOnError; steps that never ran are recorded as skipped.
func RunSteps(ctx context.Context, obs Observer, steps []Step) *Report {
	report := &Report{}
	stopped := false

	for _, step := range steps {
		if stopped || ctx.Err() != nil {
			report.Steps = append(report.Steps, StepResult{Name: step.Name, Skipped: true})
			continue
		}

		start := time.Now()
		LogPhaseStart(obs, step.Name)

		ok, err := step.Run(ctx)
		res := StepResult{Name: step.Name, OK: ok && err == nil, Err: err, Duration: time.Since(start)}
		report.Steps = append(report.Steps, res)

		if err != nil {
			LogPhaseFailed(obs, step.Name, err)
			if !step.ContinueOnError {
				stopped = true
			}
			continue
		}
		if !ok {
			LogWarning(obs, step.Name, "%s finished with warnings", step.Name)
		}
		LogPhaseComplete(obs, step.Name, res.Duration)
	}

	return report
}
