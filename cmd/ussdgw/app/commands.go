// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command-line surface of the USSD gateway.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "ussdgw",
	DisableAutoGenTag: true,
	Short:             "USSD session gateway for SidianVIBE mobile banking",
	Long: `ussdgw bridges the telco USSD aggregator and the core banking API.
It keeps per-subscriber session state in Redis, drives the declarative
menu tree, and talks to the banking backend over the colon-tuple protocol.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates the root command for the gateway CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
