package main

import (
	"encoding/json"
	"fmt"
	"hos-dispatch-service/internal/config"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// dispatchctl runs the planner, rest advisor, compliance evaluator and a single
// monitor tick offline against JSON files.
func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	policyPath string
	policy     config.Policy
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "dispatchctl",
		Short:        "Plan HOS-compliant routes and evaluate drivers from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.policy = config.DefaultPolicy()
			if opts.policyPath == "" {
				opts.policyPath = config.Get("POLICY_PATH", "")
			}
			if opts.policyPath == "" {
				return nil
			}
			p, err := config.LoadPolicy(opts.policyPath)
			if err != nil {
				return err
			}
			opts.policy = p
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.policyPath, "policy", "", "dispatcher policy YAML (defaults to $POLICY_PATH)")

	root.AddCommand(
		newPlanCmd(opts),
		newAdviseCmd(opts),
		newEvaluateCmd(opts),
		newTickCmd(opts),
	)
	return root
}

// readJSON decodes a file, or stdin when path is "-".
func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
