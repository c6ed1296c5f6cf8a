package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/solver-cli/internal/model"
)

var (
	runEmail  string
	runSecret string
	runURL    string
	runOutput string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Solve one task chain from a start URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		email := runEmail
		if email == "" {
			email = cfg.Identity.Email
		}
		secret := runSecret
		if secret == "" {
			secret = cfg.Identity.Secret
		}
		if email == "" || secret == "" || runURL == "" {
			return eris.New("run: email, secret, and url are required (flags or config)")
		}

		runner := newRunner(cfg)
		summary := runner.Run(cmd.Context(), model.Identity{Email: email, Secret: secret}, runURL)

		return printSummary(summary, runOutput)
	},
}

func printSummary(summary *model.RunSummary, format string) error {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(summary)
		if err != nil {
			return eris.Wrap(err, "run: encode summary")
		}
		fmt.Fprint(os.Stdout, string(out))
	default:
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return eris.Wrap(err, "run: encode summary")
		}
		fmt.Fprintln(os.Stdout, string(out))
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "identity email (default from config)")
	runCmd.Flags().StringVar(&runSecret, "secret", "", "identity secret (default from config)")
	runCmd.Flags().StringVar(&runURL, "url", "", "start URL of the task chain")
	runCmd.Flags().StringVar(&runOutput, "output", "json", "output format: json or yaml")
	_ = runCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(runCmd)
}
