// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Upstream service names resolved through the endpoint map.
const (
	ServiceGetCustomer   = "getcustomer"
	ServiceLogin         = "login"
	ServiceBalance       = "balance"
	ServiceMiniStatement = "ministatement"
	ServiceAirtime       = "airtime"
)

// Endpoint describes one upstream service: the FORMID it is addressed by
// and any fixed tuples merged into every call.
type Endpoint struct {
	FormID string            `json:"formId"`
	Params map[string]string `json:"params,omitempty"`
}

// Endpoints maps lowercase service names to their upstream addressing.
type Endpoints map[string]Endpoint

// Resolve returns the endpoint for a service name. Unknown names fall back
// to using the name itself, uppercased, as the FORMID so new backend forms
// can be addressed from menu configuration without a code change.
func (e Endpoints) Resolve(service string) Endpoint {
	if ep, ok := e[strings.ToLower(service)]; ok {
		return ep
	}
	return Endpoint{FormID: strings.ToUpper(service)}
}

// DefaultEndpoints returns the endpoint map used when no file is configured.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ServiceGetCustomer:   {FormID: "GETCUSTOMER"},
		ServiceLogin:         {FormID: "LOGIN"},
		ServiceBalance:       {FormID: "B-"},
		ServiceMiniStatement: {FormID: "MINISTATEMENT"},
		ServiceAirtime:       {FormID: "AIRTIME"},
	}
}

// LoadEndpoints reads the api-endpoints file. An empty path yields the
// defaults; entries in the file override defaults per service.
func LoadEndpoints(path string) (Endpoints, error) {
	endpoints := DefaultEndpoints()
	if path == "" {
		return endpoints, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return endpoints, nil
		}
		return nil, fmt.Errorf("failed to read api endpoints %s: %w", path, err)
	}

	var fromFile map[string]Endpoint
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return nil, fmt.Errorf("failed to parse api endpoints %s: %w", path, err)
	}

	for name, ep := range fromFile {
		if ep.FormID == "" {
			return nil, fmt.Errorf("api endpoint %q has no formId", name)
		}
		endpoints[strings.ToLower(name)] = ep
	}
	return endpoints, nil
}
