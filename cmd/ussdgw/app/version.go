// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/versions"
)

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the gateway version",
		Run: func(_ *cobra.Command, _ []string) {
			info := versions.GetVersionInfo()
			if jsonOutput {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					logger.Errorf("Failed to marshal version info: %v", err)
					return
				}
				fmt.Println(string(out))
				return
			}
			fmt.Printf("ussdgw %s\n", info.Version)
			fmt.Printf("Commit: %s\n", info.Commit)
			fmt.Printf("Built: %s\n", info.BuildDate)
			fmt.Printf("Go version: %s\n", info.GoVersion)
			fmt.Printf("Platform: %s\n", info.Platform)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information as JSON")

	return cmd
}
