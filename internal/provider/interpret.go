package provider

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Interpreter turns one provider's raw response body into an Outcome and a
// human-readable message. Providers with unusual shapes get their own entry
// in the interpreter table; everyone else goes through Interpret.
type Interpreter func(body []byte) (Outcome, string)

var interpreters = map[string]Interpreter{}

// RegisterInterpreter installs a provider-specific interpreter, keyed by the
// provider name from configuration.
func RegisterInterpreter(providerName string, fn Interpreter) {
	interpreters[strings.ToLower(providerName)] = fn
}

func interpreterFor(providerName string) Interpreter {
	if fn, ok := interpreters[strings.ToLower(providerName)]; ok {
		return fn
	}
	return Interpret
}

var successWords = map[string]bool{
	"success":    true,
	"successful": true,
	"completed":  true,
	"delivered":  true,
	"confirmed":  true,
}

var failureWords = map[string]bool{
	"failed":    true,
	"failure":   true,
	"fail":      true,
	"error":     true,
	"cancelled": true,
	"canceled":  true,
	"rejected":  true,
	"reversed":  true,
}

var pendingWords = map[string]bool{
	"pending":    true,
	"processing": true,
	"initiated":  true,
	"queued":     true,
}

var successMessageRe = regexp.MustCompile(`(?i)\b(success\w*|completed)\b`)

// Interpret applies the normalization precedence shared by every provider:
//
//  1. an explicit string status field, matched case-insensitively;
//  2. a boolean status field;
//  3. a nested data.status field;
//  4. a free-text message scanned for success wording;
//
// and Processing for everything else. An unknown status word is deliberately
// ambiguous: a provider inventing vocabulary must not read as success.
func Interpret(body []byte) (Outcome, string) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Processing, "unrecognized provider response"
	}
	message := textField(payload, "message", "msg", "response", "description", "api_response")

	if raw, ok := statusString(payload, "status", "Status", "current_status", "transaction_status"); ok {
		return classifyWord(raw, message)
	}
	if flag, ok := statusBool(payload, "status", "success", "Status"); ok {
		if flag {
			return Success, message
		}
		return Failed, message
	}
	if nested, ok := payload["data"].(map[string]any); ok {
		if raw, ok := statusString(nested, "status", "Status", "current_status"); ok {
			return classifyWord(raw, message)
		}
	}
	if message != "" && successMessageRe.MatchString(message) {
		return Success, message
	}
	return Processing, message
}

func classifyWord(raw, message string) (Outcome, string) {
	word := strings.ToLower(strings.TrimSpace(raw))
	if message == "" {
		message = raw
	}
	switch {
	case successWords[word]:
		return Success, message
	case failureWords[word]:
		return Failed, message
	case pendingWords[word]:
		return Processing, message
	default:
		return Processing, message
	}
}

func statusString(payload map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if value, ok := lookupFold(payload, key).(string); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func statusBool(payload map[string]any, keys ...string) (bool, bool) {
	for _, key := range keys {
		if value, ok := lookupFold(payload, key).(bool); ok {
			return value, true
		}
	}
	return false, false
}

func textField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := lookupFold(payload, key).(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// lookupFold matches keys case-insensitively so "Status" and "status" hit
// the same field regardless of which casing the provider chose today.
func lookupFold(payload map[string]any, key string) any {
	if value, ok := payload[key]; ok {
		return value
	}
	for k, value := range payload {
		if strings.EqualFold(k, key) {
			return value
		}
	}
	return nil
}
