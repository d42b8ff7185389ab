package llm

import (
	"fmt"
	"sort"
	"strings"
)

// UnsupportedModelError reports a model identifier no registered family
// recognizes.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model: %s", e.Model)
}

// TransportError is the normalized shape of every transport failure: network
// error, timeout, non-2xx status, or malformed response body.
type TransportError struct {
	Message string
	// StatusCode is the HTTP status, or 0 when the failure happened before a
	// response arrived.
	StatusCode int
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// MissingInputsError is the structured "insufficient information" signal
// from the verification backend. It is a continuation request, not a
// failure: the caller surfaces a follow-up form instead of an error.
type MissingInputsError struct {
	// RequiredInputs maps a detected intent name to the field names it
	// needs (e.g. "threat_modeling" -> ["design_spec", "vulnerability"]).
	RequiredInputs map[string][]string
	// Content is an optional pre-rendered human prompt.
	Content string
}

func (e *MissingInputsError) Error() string {
	fields := e.Fields()
	if len(fields) == 0 {
		return "additional information required"
	}
	return "additional information required: " + strings.Join(fields, ", ")
}

// Fields returns the deduplicated, sorted field names across all intents.
func (e *MissingInputsError) Fields() []string {
	seen := map[string]bool{}
	fields := []string{}
	for _, names := range e.RequiredInputs {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				fields = append(fields, name)
			}
		}
	}
	sort.Strings(fields)
	return fields
}

// Prompt returns the human-readable prompt carried by the signal, falling
// back to a generated one listing the required fields.
func (e *MissingInputsError) Prompt() string {
	if e.Content != "" {
		return e.Content
	}
	return "Additional information needed to continue: " + strings.Join(e.Fields(), ", ")
}
