// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sidianbank/ussd-gateway/pkg/errors"
)

// Node is one declarative menu screen. Immutable after load; hot reload
// swaps whole snapshots.
type Node struct {
	Name        string            `json:"name,omitempty"`
	Message     string            `json:"message"`
	Action      string            `json:"action,omitempty"`
	Handler     string            `json:"handler,omitempty"`
	Options     []Option          `json:"options,omitempty"`
	InputConfig *InputConfig      `json:"inputConfig,omitempty"`
	Navigation  map[string]string `json:"navigation,omitempty"`
	OnBack      string            `json:"onBack,omitempty"`
	OnHome      string            `json:"onHome,omitempty"`
	OnExit      string            `json:"onExit,omitempty"`
	NavHint     string            `json:"navHint,omitempty"`
}

// Option is one numbered choice on a node.
type Option struct {
	Text       string            `json:"text"`
	Condition  *Condition        `json:"condition,omitempty"`
	Store      map[string]string `json:"store,omitempty"`
	StoreValue map[string]string `json:"storeValue,omitempty"`
	Action     *Action           `json:"action,omitempty"`
	Handler    string            `json:"handler,omitempty"`
	NextMenu   string            `json:"nextMenu,omitempty"`
}

// Condition gates an option against the turn data.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// Action is a declarative upstream call attached to an option.
type Action struct {
	Type              string `json:"type"`
	Service           string `json:"service"`
	Data              string `json:"data,omitempty"`
	CacheKey          string `json:"cacheKey,omitempty"`
	StoreKey          string `json:"storeKey,omitempty"`
	NextMenuOnSuccess string `json:"nextMenuOnSuccess,omitempty"`
	NextMenuOnError   string `json:"nextMenuOnError,omitempty"`
}

// InputConfig describes free-form input handling on a node.
type InputConfig struct {
	Validation *Validation `json:"validation,omitempty"`
	Transform  string      `json:"transform,omitempty"`
	StoreKey   string      `json:"storeKey,omitempty"`
	Handler    string      `json:"handler,omitempty"`
	NextMenu   string      `json:"nextMenu,omitempty"`
}

// Validation is one input rule.
type Validation struct {
	Type         string   `json:"type"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Format       string   `json:"format,omitempty"`
	Allowed      []string `json:"allowed,omitempty"`
	Network      string   `json:"network,omitempty"`
	Handler      string   `json:"handler,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

const nodeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["message"],
  "properties": {
    "name": {"type": "string"},
    "message": {"type": "string"},
    "action": {"enum": ["con", "end"]},
    "handler": {"type": "string"},
    "navigation": {"type": "object", "additionalProperties": {"type": "string"}},
    "onBack": {"type": "string"},
    "onHome": {"type": "string"},
    "onExit": {"type": "string"},
    "navHint": {"type": "string"},
    "options": {"type": "array", "items": {"$ref": "#/definitions/option"}},
    "inputConfig": {"$ref": "#/definitions/inputConfig"}
  },
  "definitions": {
    "condition": {
      "type": "object",
      "required": ["field", "operator"],
      "properties": {
        "field": {"type": "string"},
        "operator": {"enum": ["equals", "not_equals", "greater_than", "less_than", "exists", "not_exists", "contains", "in"]},
        "value": {}
      }
    },
    "action": {
      "type": "object",
      "required": ["type", "service"],
      "properties": {
        "type": {"enum": ["api_call"]},
        "service": {"type": "string"},
        "data": {"type": "string"},
        "cacheKey": {"type": "string"},
        "storeKey": {"type": "string"},
        "nextMenuOnSuccess": {"type": "string"},
        "nextMenuOnError": {"type": "string"}
      }
    },
    "option": {
      "type": "object",
      "required": ["text"],
      "properties": {
        "text": {"type": "string"},
        "condition": {"$ref": "#/definitions/condition"},
        "store": {"type": "object", "additionalProperties": {"type": "string"}},
        "storeValue": {"type": "object", "additionalProperties": {"type": "string"}},
        "action": {"$ref": "#/definitions/action"},
        "handler": {"type": "string"},
        "nextMenu": {"type": "string"}
      }
    },
    "validation": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["msisdn", "amount", "date", "pin", "option", "pin_or_option", "custom"]},
        "min": {"type": "number"},
        "max": {"type": "number"},
        "format": {"type": "string"},
        "allowed": {"type": "array", "items": {"type": "string"}},
        "network": {"type": "string"},
        "handler": {"type": "string"},
        "errorMessage": {"type": "string"}
      }
    },
    "inputConfig": {
      "type": "object",
      "properties": {
        "validation": {"$ref": "#/definitions/validation"},
        "transform": {"enum": ["msisdn_to_254", "msisdn_to_0", "uppercase", "lowercase"]},
        "storeKey": {"type": "string"},
        "handler": {"type": "string"},
        "nextMenu": {"type": "string"}
      }
    }
  }
}`

var nodeSchemaLoader = gojsonschema.NewStringLoader(nodeSchema)

// ParseNode validates raw JSON against the node schema and decodes it.
func ParseNode(data []byte) (Node, error) {
	result, err := gojsonschema.Validate(nodeSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Node{}, errors.NewValidationError("menu node is not valid JSON", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return Node{}, errors.NewValidationError("menu node failed schema validation: "+strings.Join(msgs, "; "), nil)
	}

	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return Node{}, errors.NewValidationError("menu node decode failed", err)
	}
	if node.Action == "" {
		node.Action = ActionCon
	}
	return node, nil
}
