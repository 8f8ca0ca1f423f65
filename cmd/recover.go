package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/timvw/plan-relay/internal/recovery"
	"github.com/timvw/plan-relay/internal/render"
	"go.uber.org/zap"
)

var flagMode string

var recoverCmd = &cobra.Command{
	Use:   "recover [file]",
	Short: "Recover JSON from raw model output",
	Long: `Run JSON recovery over raw model output read from a file (or stdin)
and print the recovered value as indented JSON.

Useful for replaying the "raw" field of a failed plan response to see
which mode, if any, would have recovered it. Exits with status 1 when
recovery fails.`,
	Example: `  curl -s localhost:8000/api/plan -d '{"topic":"Go","days":3}' | jq -r .raw | plan-relay recover --mode repair`,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		mode := cfg.Recovery
		if flagMode != "" {
			m, err := recovery.ParseMode(flagMode)
			if err != nil {
				return err
			}
			mode = m
		}
		return runRecover(in, cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	},
}

func init() {
	recoverCmd.Flags().StringVarP(&flagMode, "mode", "m", "",
		"recovery mode: strict, extract, repair (default: --recovery-mode)")
	rootCmd.AddCommand(recoverCmd)
}

// runRecover reads all of in, recovers it with mode and writes the result.
func runRecover(in io.Reader, out, errOut io.Writer, mode recovery.Mode) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	r := recovery.New(mode)
	switch res := r.Recover(string(raw)).(type) {
	case recovery.Success:
		logger.Debug("recovered", zap.String("stage", res.Stage), zap.String("mode", string(mode)))
		color.New(color.FgGreen).Fprintf(errOut, "✓ recovered by %s stage\n", res.Stage)
		fmt.Fprintln(out, render.JSON(res.Value))
		return nil
	case recovery.Failure:
		color.New(color.FgRed).Fprintf(errOut, "✗ %s (stages: %v)\n", res.Reason, r.Stages())
		return fmt.Errorf("recovery failed: %s", res.Reason)
	default:
		return fmt.Errorf("recovery returned %T", res)
	}
}
