package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"doclore/internal/llm"
	"doclore/internal/logging"
)

// Verdict is the completion check's judgment of an executed plan
// against the original request.
type Verdict struct {
	CompletedTasks []string `json:"completedTasks"`
	MissingTasks   []string `json:"missingTasks"`
	ShouldReplan   bool     `json:"shouldReplan"`
	Summary        string   `json:"summary"`
}

// Complete reports whether the verdict leaves nothing to replan for.
func (v *Verdict) Complete() bool {
	return len(v.MissingTasks) == 0 || !v.ShouldReplan
}

// Checker asks the model whether the accumulated tool outputs satisfy
// the original request.
type Checker struct {
	client llm.Client
}

func NewChecker(client llm.Client) *Checker {
	return &Checker{client: client}
}

// Check judges the executed plan. A checker failure never blocks the
// flow: it degrades to a verdict derived from step statuses alone, with
// no replan.
func (c *Checker) Check(ctx context.Context, query string, plan *Plan) *Verdict {
	completion, err := c.client.Complete(ctx, []llm.Message{
		{Role: "user", Content: c.buildPrompt(query, plan)},
	}, llm.Options{JSONOutput: true})
	if err != nil {
		logging.Get(logging.CategoryAgent).Warn("Completion check failed, using step statuses: %v", err)
		return fallbackVerdict(plan)
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(extractJSON(completion.Text)), &verdict); err != nil {
		logging.Get(logging.CategoryAgent).Warn("Completion check returned unparseable verdict: %v", err)
		return fallbackVerdict(plan)
	}

	logging.Agent("Check: %d completed, %d missing, replan=%v",
		len(verdict.CompletedTasks), len(verdict.MissingTasks), verdict.ShouldReplan)
	return &verdict
}

func (c *Checker) buildPrompt(query string, plan *Plan) string {
	var b strings.Builder
	b.WriteString("Judge whether the executed plan below satisfied the user's request.\n\n")
	fmt.Fprintf(&b, "Request: %s\n\nPlan: %s\n\nSteps:\n", query, plan.Summary)
	for _, step := range plan.Steps {
		fmt.Fprintf(&b, "- [%s] %s (%s)", step.Status, step.Description, step.Tool)
		if step.Error != "" {
			fmt.Fprintf(&b, " error: %s", step.Error)
		}
		if step.Detail != "" {
			fmt.Fprintf(&b, " result: %s", step.Detail)
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Respond with ONLY a JSON object:
{
  "completedTasks": ["<accomplished sub-task>"],
  "missingTasks": ["<sub-task not accomplished>"],
  "shouldReplan": <true if another planning attempt could close the gaps>,
  "summary": "<one-line outcome summary for the user>"
}
Set shouldReplan to false when the gaps are inherent (for example the requested document does not exist) rather than fixable by different steps.
`)
	return b.String()
}

// fallbackVerdict derives a verdict from step statuses when the model
// cannot be consulted. It never requests a replan.
func fallbackVerdict(plan *Plan) *Verdict {
	v := &Verdict{ShouldReplan: false}
	for _, step := range plan.Steps {
		if step.Status == StepCompleted {
			v.CompletedTasks = append(v.CompletedTasks, step.Description)
		} else {
			v.MissingTasks = append(v.MissingTasks, step.Description)
		}
	}
	v.Summary = fmt.Sprintf("%d of %d steps completed", plan.CompletedSteps(), len(plan.Steps))
	return v
}
