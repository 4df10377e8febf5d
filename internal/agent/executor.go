package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"doclore/internal/config"
	"doclore/internal/logging"
	"doclore/internal/store"
	"doclore/internal/tools"
)

// Executor walks a plan in dependency order. Steps with no edges
// between them run concurrently when parallel execution is enabled;
// everything else is strictly ordered.
type Executor struct {
	registry *tools.Registry
	cfg      config.AgentConfig
}

func NewExecutor(registry *tools.Registry, cfg config.AgentConfig) *Executor {
	return &Executor{registry: registry, cfg: cfg}
}

// Execute runs the plan's steps, mutating their status fields, and
// returns the accumulated context map. acc carries context forward from
// earlier cycles; pass nil on the first one.
//
// Execution proceeds in waves: all pending steps whose dependencies
// completed form a wave, the wave runs, and the next wave is computed.
// A step whose dependency failed or was skipped is skipped; a step
// whose contextNeeded key never materialized fails as unsatisfiable.
func (e *Executor) Execute(ctx context.Context, plan *Plan, scope store.Scope, acc map[string]any) (map[string]any, error) {
	if acc == nil {
		acc = make(map[string]any)
	}
	var accMu sync.Mutex

	executed := 0
	for {
		wave, done := e.nextWave(plan)
		if done {
			break
		}
		if len(wave) == 0 {
			// Pending steps remain but none can run: a dependency cycle
			// the validator missed or a failed producer. Fail them.
			for _, step := range plan.Steps {
				if step.Status == StepPending {
					step.Status = StepFailed
					step.Error = "unsatisfiable: no runnable predecessor path"
				}
			}
			break
		}

		if executed+len(wave) > e.cfg.MaxToolCalls && e.cfg.MaxToolCalls > 0 {
			for _, step := range wave {
				step.Status = StepSkipped
				step.Error = fmt.Sprintf("tool call budget (%d) exhausted", e.cfg.MaxToolCalls)
			}
			continue
		}
		executed += len(wave)

		runStep := func(ctx context.Context, step *PlanStep) error {
			result := e.runStep(ctx, step, scope, acc, &accMu)
			if !result.Success && e.cfg.StopOnFailure {
				return fmt.Errorf("step %s failed: %s", step.ID, result.Error)
			}
			return nil
		}

		var waveErr error
		if e.cfg.ParallelSteps && len(wave) > 1 {
			g, gctx := errgroup.WithContext(ctx)
			for _, step := range wave {
				g.Go(func() error { return runStep(gctx, step) })
			}
			waveErr = g.Wait()
		} else {
			for _, step := range wave {
				if waveErr = runStep(ctx, step); waveErr != nil {
					break
				}
			}
		}

		if waveErr != nil {
			// stopOnFailure: abandon everything still pending.
			for _, step := range plan.Steps {
				if step.Status == StepPending {
					step.Status = StepSkipped
					step.Error = "skipped after earlier failure"
				}
			}
			return acc, waveErr
		}
		if err := ctx.Err(); err != nil {
			return acc, err
		}
	}

	logging.Agent("Executed plan %s: %d completed, %d failed/skipped",
		plan.ID, plan.CompletedSteps(), plan.FailedSteps())
	return acc, nil
}

// nextWave returns the runnable pending steps, marking steps whose
// dependencies can never complete as skipped. done is true when no
// pending steps remain.
func (e *Executor) nextWave(plan *Plan) (wave []*PlanStep, done bool) {
	pending := 0
	for _, step := range plan.Steps {
		if step.Status != StepPending {
			continue
		}
		pending++

		ready, dead := true, false
		for _, dep := range step.DependsOn {
			switch d := plan.step(dep); d.Status {
			case StepCompleted:
			case StepFailed, StepSkipped:
				dead = true
			default:
				ready = false
			}
		}
		if dead {
			step.Status = StepSkipped
			step.Error = "skipped: dependency did not complete"
			pending--
			continue
		}
		if ready {
			wave = append(wave, step)
		}
	}
	return wave, pending == 0
}

// runStep executes one step and folds its result into the accumulated
// context under the step's providesContext keys.
func (e *Executor) runStep(ctx context.Context, step *PlanStep, scope store.Scope, acc map[string]any, accMu *sync.Mutex) *tools.Result {
	// Required context must already exist; producers run in earlier
	// waves by construction, so absence here is a planner bug.
	accMu.Lock()
	params := make(map[string]any, len(step.Params))
	for k, v := range step.Params {
		params[k] = v
	}
	for _, key := range step.ContextNeeded {
		value, ok := acc[key]
		if !ok {
			accMu.Unlock()
			step.Status = StepFailed
			step.Error = fmt.Sprintf("unsatisfiable: context %q was never produced", key)
			return tools.Fail(step.Tool, "%s", step.Error)
		}
		if _, set := params[key]; !set {
			params[key] = value
		}
	}
	accMu.Unlock()

	step.Status = StepRunning
	logging.Agent("Step %s: %s (%s)", step.ID, step.Description, step.Tool)

	if e.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ToolTimeout)
		defer cancel()
	}
	result := e.registry.Execute(ctx, step.Tool, params, scope)

	step.PersistedChanges = result.PersistedChanges
	if !result.Success {
		step.Status = StepFailed
		step.Error = result.Error
		logging.Get(logging.CategoryAgent).Warn("Step %s failed: %s", step.ID, result.Error)
		return result
	}

	step.Status = StepCompleted
	step.Detail = summarizeData(result.Data)

	accMu.Lock()
	for _, key := range step.ProvidesContext {
		acc[key] = result.Data
	}
	accMu.Unlock()
	return result
}

// summarizeData renders a compact step detail for logs and the checker
// prompt.
func summarizeData(data any) string {
	if data == nil {
		return ""
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	const max = 500
	if len(raw) > max {
		return string(raw[:max]) + "…"
	}
	return string(raw)
}
