package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ike-ops/expedientes-cli/internal/resilience"
	"github.com/ike-ops/expedientes-cli/pkg/license"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "License manager operations",
}

func newLicenseClient() license.Client {
	return license.NewClient(
		license.WithBaseURL(cfg.License.BaseURL),
		license.WithRetry(resilience.RetryConfig{
			Attempts: cfg.License.Attempts,
			Delay:    time.Second,
		}),
	)
}

var licenseValidateCmd = &cobra.Command{
	Use:   "validate <token>",
	Short: "Activate a license token for this machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := newLicenseClient().Validate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("valid: %t\nexpires: %s\nuser: %s\n", v.Valid, v.ExpiresAt, v.UserID)
		return nil
	},
}

var licenseCheckCmd = &cobra.Command{
	Use:   "check <token>",
	Short: "Check whether a license token is still valid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := newLicenseClient().CheckValidity(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("valid: %t\nexpires: %s\n", v.Valid, v.ExpiresAt)
		if v.Message != "" {
			fmt.Printf("message: %s\n", v.Message)
		}
		return nil
	},
}

func init() {
	licenseCmd.AddCommand(licenseValidateCmd)
	licenseCmd.AddCommand(licenseCheckCmd)
	rootCmd.AddCommand(licenseCmd)
}
