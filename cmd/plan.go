package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/timvw/plan-relay/internal/model"
	"github.com/timvw/plan-relay/internal/planner"
	"github.com/timvw/plan-relay/internal/recovery"
	"github.com/timvw/plan-relay/internal/render"
)

var (
	flagDays  int
	flagJSON  bool
	flagTheme string
)

// errPlanFailed signals a failed envelope after it has been printed.
var errPlanFailed = errors.New("plan generation failed")

var planCmd = &cobra.Command{
	Use:   "plan <topic>",
	Short: "Generate one study plan and print it",
	Long: `Generate a study plan for a topic by calling the configured backend once,
exactly like POST /api/plan.

The plan is rendered for the terminal; use --json to print the response
envelope instead. Exits with status 1 when generation fails.`,
	Example: `  plan-relay plan "Go concurrency" --days 5
  plan-relay plan Rust --days 14 --model llama3.1 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlan(cmd, strings.Join(args, " "))
	},
}

func init() {
	planCmd.Flags().IntVarP(&flagDays, "days", "d", 7,
		fmt.Sprintf("plan length in days (%d-%d)", model.MinDays, model.MaxDays))
	planCmd.Flags().BoolVar(&flagJSON, "json", false, "print the response envelope as JSON")
	planCmd.Flags().StringVar(&flagTheme, "theme", "dark", "color theme: dark, light")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, topic string) error {
	req := model.PlanRequest{Topic: topic, Days: flagDays}
	if problems := req.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid request: %s", strings.Join(problems, "; "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gen, err := getGenerator()
	if err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	svc := planner.New(gen, recovery.New(cfg.Recovery), logger, nil)

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" Generating a %d-day plan with %s...", req.Days, svc.ResolveModel(req.Model))
	s.Start()
	env := svc.Plan(ctx, req)
	s.Stop()

	out := cmd.OutOrStdout()
	if flagJSON {
		fmt.Fprintln(out, render.JSON(env))
	} else {
		fmt.Fprint(out, render.New(render.ThemeByName(flagTheme)).Envelope(env))
	}

	if !env.OK {
		return errPlanFailed
	}
	return nil
}
