// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// BusinessRules are the product limits enforced gateway-side before a
// transaction is offered to the upstream.
type BusinessRules struct {
	Airtime AirtimeRules `json:"airtime"`
	Pin     PinRules     `json:"pin"`
}

// AirtimeRules bound a single purchase and the rolling daily aggregate.
type AirtimeRules struct {
	MinAmount  int `json:"minAmount"`
	MaxAmount  int `json:"maxAmount"`
	DailyLimit int `json:"dailyLimit"`
}

// PinRules bound the accepted PIN shape.
type PinRules struct {
	MinLength int `json:"minLength"`
	MaxLength int `json:"maxLength"`
}

// DefaultBusinessRules returns the rules used when no file is configured.
func DefaultBusinessRules() *BusinessRules {
	return &BusinessRules{
		Airtime: AirtimeRules{MinAmount: 10, MaxAmount: 5000, DailyLimit: 10000},
		Pin:     PinRules{MinLength: 4, MaxLength: 6},
	}
}

// LoadBusinessRules reads and validates the business rules file. An empty
// path yields the defaults.
func LoadBusinessRules(path string) (*BusinessRules, error) {
	if path == "" {
		return DefaultBusinessRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read business rules %s: %w", path, err)
	}

	rules := DefaultBusinessRules()
	if err := json.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse business rules %s: %w", path, err)
	}

	if err := rules.validate(); err != nil {
		return nil, fmt.Errorf("invalid business rules %s: %w", path, err)
	}
	return rules, nil
}

func (r *BusinessRules) validate() error {
	if r.Airtime.MinAmount <= 0 || r.Airtime.MaxAmount < r.Airtime.MinAmount {
		return fmt.Errorf("airtime amount bounds [%d, %d] are not sane",
			r.Airtime.MinAmount, r.Airtime.MaxAmount)
	}
	if r.Airtime.DailyLimit < r.Airtime.MaxAmount {
		return fmt.Errorf("airtime daily limit %d is below the single-purchase maximum %d",
			r.Airtime.DailyLimit, r.Airtime.MaxAmount)
	}
	if r.Pin.MinLength < 4 || r.Pin.MaxLength < r.Pin.MinLength {
		return fmt.Errorf("pin length bounds [%d, %d] are not sane",
			r.Pin.MinLength, r.Pin.MaxLength)
	}
	return nil
}
