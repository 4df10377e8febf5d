package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"doclore/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat over the document base",
	Long: `Starts a read-eval loop. Each turn retrieves relevant document chunks
under the token budget; the model can invoke tools (search, read,
summarize, write, updateFile, ...) via tool_call blocks.

Commands inside the loop: /quit to exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func runChat(ctx context.Context) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	scope, err := a.scope()
	if err != nil {
		return err
	}

	if scope.Global() {
		fmt.Println("doclore chat (global scope). /quit to exit.")
	} else {
		fmt.Printf("doclore chat (project %s). /quit to exit.\n", projectName)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		turn, err := a.chat.Send(ctx, scope, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		if turn.Reply != "" {
			fmt.Println(turn.Reply)
		}
		for _, result := range turn.ToolResults {
			if result.Success {
				fmt.Printf("  ✓ %s\n", result.Tool)
			} else {
				fmt.Printf("  ✗ %s: %s\n", result.Tool, result.Error)
			}
		}
		for _, perr := range turn.ParseErrors {
			fmt.Printf("  ! malformed tool call: %s\n", perr.Reason)
		}
		if turn.Truncated {
			fmt.Println("  (context truncated to fit the token budget)")
		}
	}
}

var askYes bool

var askCmd = &cobra.Command{
	Use:   "ask [request]",
	Short: "Run one request through the planning agent",
	Long: `Plans the request as explicit tool steps, shows the plan, and executes
it. Low-complexity read-only plans run immediately; anything mutating
asks for confirmation first (or pass --yes).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		scope, err := a.scope()
		if err != nil {
			return err
		}
		query := strings.Join(args, " ")

		outcome, err := a.agent.Run(cmd.Context(), query, scope, approvePlan)
		if err != nil {
			return err
		}

		if outcome.Plan != nil && outcome.Plan.NeedsClarification {
			fmt.Printf("Need more detail: %s\n", outcome.Plan.ClarificationQuestion)
			return nil
		}
		if outcome.State == agent.StateCancelled {
			fmt.Println("Cancelled.")
			return nil
		}

		printPlan(outcome.Plan)
		if outcome.Verdict != nil {
			fmt.Printf("\n%s\n", outcome.Verdict.Summary)
			for _, missing := range outcome.Verdict.MissingTasks {
				fmt.Printf("  not done: %s\n", missing)
			}
		}
		return nil
	},
}

// approvePlan prompts on the terminal; --yes approves everything.
func approvePlan(plan *agent.Plan) bool {
	printPlan(plan)
	if askYes {
		return true
	}
	fmt.Print("Execute this plan? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printPlan(plan *agent.Plan) {
	if plan == nil {
		return
	}
	fmt.Printf("Plan: %s (%s complexity)\n", plan.Summary, plan.Complexity)
	for _, step := range plan.Steps {
		marker := " "
		switch step.Status {
		case agent.StepCompleted:
			marker = "✓"
		case agent.StepFailed:
			marker = "✗"
		case agent.StepSkipped:
			marker = "-"
		}
		fmt.Printf("  %s %s: %s (%s)", marker, step.ID, step.Description, step.Tool)
		if step.Error != "" {
			fmt.Printf(": %s", step.Error)
		}
		fmt.Println()
	}
}

func init() {
	askCmd.Flags().BoolVarP(&askYes, "yes", "y", false, "approve plans without prompting")
}
