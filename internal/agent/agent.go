package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"doclore/internal/config"
	"doclore/internal/llm"
	"doclore/internal/logging"
	"doclore/internal/store"
	"doclore/internal/tools"
)

// ApprovalFunc decides whether a plan may execute. It is called for
// every plan that does not auto-execute; returning false cancels the
// run. A nil func approves nothing that needs asking.
type ApprovalFunc func(*Plan) bool

// Outcome is the final result of a run.
type Outcome struct {
	State   State
	Plan    *Plan // last plan of the run
	Verdict *Verdict
	Context map[string]any // accumulated step outputs
	Replans int
}

// Agent drives the planner-executor-checker flow. One run at a time per
// agent; a second concurrent Run returns an error rather than
// interleaving plans.
type Agent struct {
	planner  *Planner
	executor *Executor
	checker  *Checker
	cfg      config.AgentConfig

	mu      sync.Mutex
	running bool
}

func New(client llm.Client, registry *tools.Registry, cfg config.AgentConfig) *Agent {
	return &Agent{
		planner:  NewPlanner(client, registry),
		executor: NewExecutor(registry, cfg),
		checker:  NewChecker(client),
		cfg:      cfg,
	}
}

// Run executes the full flow for one request. Plans that need
// confirmation are put to approve; plans flagged needsClarification end
// the run immediately with the question on the returned plan, leaving
// the caller to re-Run with a disambiguated request.
//
// The run performs at most MaxReplanAttempts+1 planning cycles before
// finalizing, complete or not.
func (a *Agent) Run(ctx context.Context, query string, scope store.Scope, approve ApprovalFunc) (*Outcome, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, fmt.Errorf("a plan is already executing in this session")
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	outcome := &Outcome{Context: make(map[string]any)}
	replanContext := ""

	for cycle := 0; ; cycle++ {
		outcome.State = StatePlanning
		plan, err := a.planner.BuildPlan(ctx, query, scope.String(), replanContext)
		if err != nil {
			return nil, err
		}
		outcome.Plan = plan

		if plan.NeedsClarification {
			// Halt rather than guess; the caller owns the conversation.
			logging.Agent("Run halted for clarification")
			return outcome, nil
		}

		if !a.autoExecutes(plan) {
			outcome.State = StateAwaiting
			if approve == nil || !approve(plan) {
				outcome.State = StateCancelled
				logging.Agent("Plan %s rejected", plan.ID)
				return outcome, nil
			}
		}

		outcome.State = StateExecuting
		acc, err := a.executor.Execute(ctx, plan, scope, outcome.Context)
		outcome.Context = acc
		if err != nil && ctx.Err() != nil {
			return outcome, err
		}
		// A stopOnFailure abort still goes through checking: the verdict
		// decides whether a different plan could succeed.

		outcome.State = StateChecking
		verdict := a.checker.Check(ctx, query, plan)
		outcome.Verdict = verdict

		if verdict.Complete() || cycle >= a.cfg.MaxReplanAttempts {
			if !verdict.Complete() {
				logging.Agent("Replan budget exhausted after %d cycles; finalizing with partial result", cycle+1)
			}
			outcome.State = StateComplete
			return outcome, nil
		}

		outcome.State = StateReplanning
		outcome.Replans++
		replanContext = buildReplanContext(verdict, plan)
		logging.Agent("Replanning (attempt %d of %d)", outcome.Replans, a.cfg.MaxReplanAttempts)
	}
}

// autoExecutes reports whether the plan skips confirmation.
func (a *Agent) autoExecutes(plan *Plan) bool {
	return plan.Complexity == ComplexityLow && a.cfg.AutoExecuteLow
}

// buildReplanContext summarizes a cycle for the next planning prompt.
func buildReplanContext(verdict *Verdict, plan *Plan) string {
	var b strings.Builder
	if len(verdict.CompletedTasks) > 0 {
		fmt.Fprintf(&b, "Done: %s\n", strings.Join(verdict.CompletedTasks, "; "))
	}
	if len(verdict.MissingTasks) > 0 {
		fmt.Fprintf(&b, "Missing: %s\n", strings.Join(verdict.MissingTasks, "; "))
	}
	for _, step := range plan.Steps {
		if step.Status == StepFailed {
			fmt.Fprintf(&b, "Failed step %q: %s\n", step.Description, step.Error)
		}
	}
	return b.String()
}
