package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclore/internal/config"
	"doclore/internal/llm"
	"doclore/internal/store"
	"doclore/internal/tools"
)

// recorder captures the params every probe invocation received.
type recorder struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (r *recorder) record(params map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, params)
}

func testRegistry(rec *recorder) *tools.Registry {
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:        "probe",
		Description: "records its params and succeeds",
		Execute: func(_ context.Context, params map[string]any, _ store.Scope) *tools.Result {
			rec.record(params)
			return tools.Ok("probe", map[string]any{"echo": params["value"]})
		},
	})
	reg.MustRegister(&tools.Tool{
		Name:        "failing",
		Description: "always fails",
		Execute: func(context.Context, map[string]any, store.Scope) *tools.Result {
			return tools.Fail("failing", "deliberate failure")
		},
	})
	return reg
}

func testConfig() config.AgentConfig {
	return config.AgentConfig{
		MaxReplanAttempts: 2,
		AutoExecuteLow:    true,
		MaxToolCalls:      25,
	}
}

const verdictDone = `{"completedTasks":["everything"],"missingTasks":[],"shouldReplan":false,"summary":"done"}`
const verdictReplan = `{"completedTasks":[],"missingTasks":["the thing"],"shouldReplan":true,"summary":"incomplete"}`

func lowPlan(steps string) string {
	return `{"summary":"test plan","complexity":"low","needsClarification":false,"steps":[` + steps + `]}`
}

func TestLowComplexityAutoExecutes(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"probe","params":{"value":"hi"},"description":"probe once"}`),
		verdictDone,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "probe it", store.Scope{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, outcome.State)
	assert.Equal(t, 0, outcome.Replans)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "hi", rec.calls[0]["value"])
	assert.Equal(t, StepCompleted, outcome.Plan.Steps[0].Status)
	assert.Equal(t, "done", outcome.Verdict.Summary)
}

func TestHighComplexityRequiresApproval(t *testing.T) {
	rec := &recorder{}
	plan := `{"summary":"mutating plan","complexity":"high","steps":[{"id":"step-1","tool":"probe","params":{},"description":"p"}]}`

	t.Run("rejection cancels", func(t *testing.T) {
		client := llm.NewScriptedClient(plan)
		a := New(client, testRegistry(rec), testConfig())

		outcome, err := a.Run(context.Background(), "do it", store.Scope{}, func(*Plan) bool { return false })
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, outcome.State)
		assert.Empty(t, rec.calls)
	})

	t.Run("nil approver cancels", func(t *testing.T) {
		client := llm.NewScriptedClient(plan)
		a := New(client, testRegistry(rec), testConfig())

		outcome, err := a.Run(context.Background(), "do it", store.Scope{}, nil)
		require.NoError(t, err)
		assert.Equal(t, StateCancelled, outcome.State)
	})

	t.Run("approval executes", func(t *testing.T) {
		client := llm.NewScriptedClient(plan, verdictDone)
		a := New(client, testRegistry(rec), testConfig())

		approved := false
		outcome, err := a.Run(context.Background(), "do it", store.Scope{}, func(p *Plan) bool {
			approved = true
			return true
		})
		require.NoError(t, err)
		assert.True(t, approved)
		assert.Equal(t, StateComplete, outcome.State)
		assert.Len(t, rec.calls, 1)
	})
}

func TestClarificationHaltsWithoutExecuting(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		`{"summary":"","complexity":"low","needsClarification":true,"clarificationQuestion":"which project?","steps":[]}`,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "delete the file", store.Scope{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StatePlanning, outcome.State)
	assert.True(t, outcome.Plan.NeedsClarification)
	assert.Equal(t, "which project?", outcome.Plan.ClarificationQuestion)
	assert.Empty(t, rec.calls)
}

func TestContextFlowsBetweenSteps(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"probe","params":{"value":"found"},"description":"produce","providesContext":["relevantChunks"]},
			{"id":"step-2","tool":"probe","params":{},"description":"consume","dependsOn":["step-1"],"contextNeeded":["relevantChunks"]}`),
		verdictDone,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "two steps", store.Scope{}, nil)
	require.NoError(t, err)
	require.Equal(t, StateComplete, outcome.State)

	require.Len(t, rec.calls, 2)
	produced := rec.calls[1]["relevantChunks"].(map[string]any)
	assert.Equal(t, "found", produced["echo"])
	assert.Contains(t, outcome.Context, "relevantChunks")
}

func TestDependentOfFailedStepIsSkipped(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"failing","params":{},"description":"fails"},
			{"id":"step-2","tool":"probe","params":{},"description":"never runs","dependsOn":["step-1"]}`),
		verdictDone,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "fail then skip", store.Scope{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StepFailed, outcome.Plan.Steps[0].Status)
	assert.Equal(t, StepSkipped, outcome.Plan.Steps[1].Status)
	assert.Empty(t, rec.calls)
}

func TestStopOnFailureAbandonsIndependentSteps(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	cfg.StopOnFailure = true
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"failing","params":{},"description":"fails"},
			{"id":"step-2","tool":"probe","params":{},"description":"independent","dependsOn":["step-1"]},
			{"id":"step-3","tool":"probe","params":{},"description":"also pending"}`),
		verdictDone,
	)
	// step-1 and step-3 are independent; sequential execution hits the
	// failure first and abandons step-3.
	a := New(client, testRegistry(rec), cfg)

	outcome, err := a.Run(context.Background(), "stop early", store.Scope{}, nil)
	require.NoError(t, err)
	require.Equal(t, StateComplete, outcome.State)

	assert.Equal(t, StepFailed, outcome.Plan.Steps[0].Status)
	assert.Equal(t, StepSkipped, outcome.Plan.Steps[1].Status)
	assert.Equal(t, StepSkipped, outcome.Plan.Steps[2].Status)
}

func TestParallelIndependentSteps(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	cfg.ParallelSteps = true
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"probe","params":{"value":"a"},"description":"left"},
			{"id":"step-2","tool":"probe","params":{"value":"b"},"description":"right"}`),
		verdictDone,
	)
	a := New(client, testRegistry(rec), cfg)

	outcome, err := a.Run(context.Background(), "fan out", store.Scope{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, outcome.State)
	assert.Len(t, rec.calls, 2)
	for _, step := range outcome.Plan.Steps {
		assert.Equal(t, StepCompleted, step.Status)
	}
}

func TestReplanningIsBounded(t *testing.T) {
	rec := &recorder{}
	step := `{"id":"step-1","tool":"probe","params":{},"description":"p"}`
	// Every cycle: one plan, one always-replan verdict. The run must
	// finalize after MaxReplanAttempts+1 cycles regardless.
	client := llm.NewScriptedClient(
		lowPlan(step), verdictReplan,
		lowPlan(step), verdictReplan,
		lowPlan(step), verdictReplan,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "never satisfied", store.Scope{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, outcome.State)
	assert.Equal(t, 2, outcome.Replans)
	assert.Len(t, rec.calls, 3)
	// All scripted responses consumed: exactly 3 planning cycles happened.
	assert.Len(t, client.Calls(), 6)
}

func TestReplanPromptCarriesContext(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"failing","params":{},"description":"first try"}`),
		`{"completedTasks":[],"missingTasks":["write the report"],"shouldReplan":true,"summary":"failed"}`,
		lowPlan(`{"id":"step-1","tool":"probe","params":{},"description":"second try"}`),
		verdictDone,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "retry", store.Scope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, outcome.State)
	assert.Equal(t, 1, outcome.Replans)

	calls := client.Calls()
	require.Len(t, calls, 4)
	replanPrompt := calls[2].Messages[0].Content
	assert.Contains(t, replanPrompt, "write the report")
	assert.Contains(t, replanPrompt, "first try")
}

func TestPlanValidationRejectsUnknownTool(t *testing.T) {
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"nosuch","params":{},"description":"p"}`),
	)
	a := New(client, testRegistry(&recorder{}), testConfig())

	_, err := a.Run(context.Background(), "bad plan", store.Scope{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestPlanValidationRejectsUnprovidedContext(t *testing.T) {
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"probe","params":{},"description":"p","contextNeeded":["ghost"]}`),
	)
	a := New(client, testRegistry(&recorder{}), testConfig())

	_, err := a.Run(context.Background(), "bad plan", store.Scope{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestPlannerToleratesFencedJSON(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		"Here is the plan:\n```json\n"+lowPlan(`{"id":"step-1","tool":"probe","params":{},"description":"p"}`)+"\n```",
		verdictDone,
	)
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "fenced", store.Scope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, outcome.State)
	assert.Len(t, rec.calls, 1)
}

func TestCheckerFailureDegradesToStepStatuses(t *testing.T) {
	rec := &recorder{}
	client := llm.NewScriptedClient(
		lowPlan(`{"id":"step-1","tool":"probe","params":{},"description":"only step"}`),
	) // checker call exhausts the script and errors
	a := New(client, testRegistry(rec), testConfig())

	outcome, err := a.Run(context.Background(), "degrade", store.Scope{}, nil)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, outcome.State)
	require.NotNil(t, outcome.Verdict)
	assert.False(t, outcome.Verdict.ShouldReplan)
	assert.Contains(t, outcome.Verdict.CompletedTasks, "only step")
}
