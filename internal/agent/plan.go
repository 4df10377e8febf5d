// Package agent implements the planner-executor-checker loop: the LLM
// drafts an execution plan over the tool catalog, the executor walks it
// in dependency order, and a completion check decides whether to
// finish, replan, or give up with a partial result.
package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the position of a run in the flow
// planning → awaiting_confirmation → executing → checking →
// replanning → complete|cancelled.
type State string

const (
	StatePlanning   State = "planning"
	StateAwaiting   State = "awaiting_confirmation"
	StateExecuting  State = "executing"
	StateChecking   State = "checking"
	StateReplanning State = "replanning"
	StateComplete   State = "complete"
	StateCancelled  State = "cancelled"
)

// StepStatus tracks one step through execution.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Complexity is the planner's self-assessment; low plans may
// auto-execute, high plans wait for confirmation.
const (
	ComplexityLow  = "low"
	ComplexityHigh = "high"
)

// PlanStep is one tool invocation in a plan. dependsOn orders steps;
// contextNeeded/providesContext describe data flow between them.
type PlanStep struct {
	ID              string         `json:"id"`
	Tool            string         `json:"tool"`
	Params          map[string]any `json:"params"`
	Description     string         `json:"description"`
	DependsOn       []string       `json:"dependsOn,omitempty"`
	ContextNeeded   []string       `json:"contextNeeded,omitempty"`
	ProvidesContext []string       `json:"providesContext,omitempty"`

	// Mutable during execution; everything above is fixed at planning.
	Status           StepStatus `json:"status"`
	Detail           string     `json:"detail,omitempty"`
	Error            string     `json:"error,omitempty"`
	PersistedChanges bool       `json:"persistedChanges,omitempty"`
}

// Plan is an immutable execution plan; only per-step status fields
// change once it is created.
type Plan struct {
	ID                    string      `json:"id"`
	Summary               string      `json:"summary"`
	Steps                 []*PlanStep `json:"steps"`
	NeedsClarification    bool        `json:"needsClarification"`
	ClarificationQuestion string      `json:"clarificationQuestion,omitempty"`
	OriginalQuery         string      `json:"originalQuery"`
	Complexity            string      `json:"complexity"`
	CreatedAt             time.Time   `json:"createdAt"`
}

// normalize fills server-side fields the model is not trusted with and
// coerces loose values into the expected domain.
func (p *Plan) normalize(query string) {
	p.ID = uuid.NewString()
	p.OriginalQuery = query
	p.CreatedAt = time.Now()
	if p.Complexity != ComplexityLow {
		// Unknown self-assessments default to the cautious path.
		p.Complexity = ComplexityHigh
	}
	for i, step := range p.Steps {
		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%d", i+1)
		}
		if step.Params == nil {
			step.Params = make(map[string]any)
		}
		step.Status = StepPending
	}
}

// validate rejects plans the executor could never run: unknown tools,
// dangling dependency edges, and context keys no earlier step provides.
func (p *Plan) validate(isKnownTool func(string) bool) error {
	if p.NeedsClarification {
		return nil // nothing to execute yet
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}

	ids := make(map[string]bool, len(p.Steps))
	for _, step := range p.Steps {
		if ids[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		ids[step.ID] = true
	}

	provided := make(map[string]bool)
	for _, step := range p.Steps {
		if !isKnownTool(step.Tool) {
			return fmt.Errorf("step %s uses unknown tool %q", step.ID, step.Tool)
		}
		for _, dep := range step.DependsOn {
			if !ids[dep] {
				return fmt.Errorf("step %s depends on unknown step %q", step.ID, dep)
			}
		}
		for _, key := range step.ContextNeeded {
			if !provided[key] {
				return fmt.Errorf("step %s needs context %q no earlier step provides", step.ID, key)
			}
		}
		for _, key := range step.ProvidesContext {
			provided[key] = true
		}
	}
	return nil
}

// step returns the step with the given id, or nil.
func (p *Plan) step(id string) *PlanStep {
	for _, s := range p.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// CompletedSteps counts steps that finished successfully.
func (p *Plan) CompletedSteps() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}

// FailedSteps counts steps that failed or were skipped.
func (p *Plan) FailedSteps() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StepFailed || s.Status == StepSkipped {
			n++
		}
	}
	return n
}
