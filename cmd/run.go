package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ike-ops/expedientes-cli/internal/automation"
	"github.com/ike-ops/expedientes-cli/internal/policy"
	"github.com/ike-ops/expedientes-cli/internal/report"
	"github.com/ike-ops/expedientes-cli/internal/resilience"
	"github.com/ike-ops/expedientes-cli/internal/runner"
	"github.com/ike-ops/expedientes-cli/internal/store"
	"github.com/ike-ops/expedientes-cli/pkg/license"
)

var (
	runUsername   string
	runPassword   string
	runDelay      int
	runBatchSize  int
	runMargin     bool
	runSuperior   bool
	runNoHistory  bool
	runNoReport   bool
	runReportFile string
)

var runCmd = &cobra.Command{
	Use:   "run <file.xlsx>",
	Short: "Process every expediente in a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runFile := args[0]

		if err := checkLicense(ctx); err != nil {
			return err
		}

		// Flags override the config file only when explicitly set.
		runnerCfg := cfg.Runner
		if cmd.Flags().Changed("delay") {
			runnerCfg.DelaySecs = runDelay
		}
		if cmd.Flags().Changed("batch-size") {
			runnerCfg.BatchSize = runBatchSize
		}
		policyCfg := policy.Config{
			MarginLogic:   cfg.Policy.MarginLogic,
			SuperiorLogic: cfg.Policy.SuperiorLogic,
		}
		if cmd.Flags().Changed("margin") {
			policyCfg.MarginLogic = runMargin
		}
		if cmd.Flags().Changed("superior") {
			policyCfg.SuperiorLogic = runSuperior
		}

		creds := automation.Credentials{
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
		}
		if runUsername != "" {
			creds.Username = runUsername
		}
		if runPassword != "" {
			creds.Password = runPassword
		}

		var history store.Store
		if !runNoHistory {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			history = st
		}

		notifier := runner.NewChannelNotifier(32)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for p := range notifier.C() {
				if p.Final {
					fmt.Printf("[%d/%d] %s\n", p.Current, p.Total, p.Message)
					continue
				}
				fmt.Printf("[%d/%d] %.1f%% %s\n", p.Current, p.Total, p.Percentage, p.Message)
			}
		}()

		engine := automation.NewEngine(cfg.Portal, policyCfg)
		r := runner.New(runnerCfg, engine, history, notifier)

		result, err := r.Run(ctx, runFile, creds)
		notifier.Close()
		<-done
		if err != nil {
			return eris.Wrap(err, "run")
		}

		zap.L().Info("run complete",
			zap.Int("processed", result.ProcessedCount),
			zap.Int("errors", result.ErrorCount),
			zap.Int("accepted", result.Stats.TotalAccepted),
		)

		if runNoReport {
			result.Report = nil
		} else if runReportFile != "" {
			if err := os.WriteFile(runReportFile, []byte(report.FormatText(result.Report)), 0o644); err != nil {
				return eris.Wrap(err, "write report")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// checkLicense gates the run when a license token is configured. Without a
// token the gate is skipped entirely.
func checkLicense(ctx context.Context) error {
	if cfg.License.Token == "" {
		return nil
	}

	client := license.NewClient(
		license.WithBaseURL(cfg.License.BaseURL),
		license.WithRetry(resilience.RetryConfig{
			Attempts: cfg.License.Attempts,
			Delay:    time.Second,
		}),
	)

	v, err := client.CheckValidity(ctx, cfg.License.Token)
	if err != nil {
		return eris.Wrap(err, "license check")
	}
	if !v.Valid {
		return eris.Errorf("license is not valid: %s", v.Message)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runUsername, "username", "", "portal username (overrides config)")
	runCmd.Flags().StringVar(&runPassword, "password", "", "portal password (overrides config)")
	runCmd.Flags().IntVar(&runDelay, "delay", 2, "seconds between records")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 5, "records per write-back batch")
	runCmd.Flags().BoolVar(&runMargin, "margin", false, "release costs within ±10% of the saved amount")
	runCmd.Flags().BoolVar(&runSuperior, "superior", false, "release costs above the saved amount")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "skip run history persistence")
	runCmd.Flags().BoolVar(&runNoReport, "no-report", false, "omit the report from the output")
	runCmd.Flags().StringVar(&runReportFile, "report-file", "", "write the text report to this path")
	rootCmd.AddCommand(runCmd)
}
