package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"doclore/internal/llm"
	"doclore/internal/logging"
	"doclore/internal/tools"
)

// Planner turns a natural-language request into an executable plan over
// the tool catalog.
type Planner struct {
	client   llm.Client
	registry *tools.Registry
}

func NewPlanner(client llm.Client, registry *tools.Registry) *Planner {
	return &Planner{client: client, registry: registry}
}

// BuildPlan asks the model for a plan and validates it. replanContext
// carries what a previous cycle already learned; empty on the first
// attempt.
func (p *Planner) BuildPlan(ctx context.Context, query, scopeDesc, replanContext string) (*Plan, error) {
	prompt := p.buildPrompt(query, scopeDesc, replanContext)

	completion, err := p.client.Complete(ctx, []llm.Message{
		{Role: "user", Content: prompt},
	}, llm.Options{JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(extractJSON(completion.Text)), &plan); err != nil {
		return nil, fmt.Errorf("planner returned unparseable plan: %w", err)
	}

	plan.normalize(query)
	if err := plan.validate(p.registry.Has); err != nil {
		return nil, fmt.Errorf("planner returned invalid plan: %w", err)
	}

	if plan.NeedsClarification {
		logging.Agent("Plan needs clarification: %s", plan.ClarificationQuestion)
	} else {
		logging.Agent("Planned %d steps (complexity=%s): %s", len(plan.Steps), plan.Complexity, plan.Summary)
	}
	return &plan, nil
}

func (p *Planner) buildPrompt(query, scopeDesc, replanContext string) string {
	var b strings.Builder
	b.WriteString("You are a planning assistant for a document workspace. ")
	b.WriteString("Break the user's request into tool invocations.\n\n")

	b.WriteString("Available tools:\n")
	for _, tool := range p.registry.All() {
		fmt.Fprintf(&b, "- %s: %s", tool.Name, tool.Description)
		if len(tool.Schema.Required) > 0 {
			fmt.Fprintf(&b, " (required params: %s)", strings.Join(tool.Schema.Required, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString(`
Respond with ONLY a JSON object:
{
  "summary": "<one-line plan summary>",
  "complexity": "low" | "high",
  "needsClarification": false,
  "clarificationQuestion": "",
  "steps": [
    {
      "id": "step-1",
      "tool": "<tool name>",
      "params": { ... },
      "description": "<what this step does>",
      "dependsOn": ["<earlier step id>"],
      "contextNeeded": ["<key>"],
      "providesContext": ["<key>"]
    }
  ]
}

Rules:
- complexity is "low" only for read-only plans of at most two steps; anything mutating files or projects is "high".
- Use dependsOn for ordering and contextNeeded/providesContext to pass data between steps (a consumer must come after its producer).
- If the request is ambiguous (for example the target project or file is unclear), set needsClarification to true with a single clarificationQuestion and an empty steps list instead of guessing.
`)

	fmt.Fprintf(&b, "\nScope: %s\n", scopeDesc)
	if replanContext != "" {
		fmt.Fprintf(&b, "\nA previous attempt was incomplete. Known so far:\n%s\nPlan only the remaining work.\n", replanContext)
	}
	fmt.Fprintf(&b, "\nUser request: %s\n", query)
	return b.String()
}

// extractJSON trims prose and code fences around the first balanced
// JSON object in text. Models wrap JSON despite instructions often
// enough that the planner cannot rely on clean output.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
