// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the USSD gateway.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/sidianbank/ussd-gateway/cmd/ussdgw/app"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

func main() {
	// A .env file is optional; deployments set the environment directly.
	_ = godotenv.Load()

	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
