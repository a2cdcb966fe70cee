package vapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"barberline/internal/calls"
)

// Envelope is the body the voice platform posts to every server URL.
type Envelope struct {
	Message Message `json:"message"`
}

type Message struct {
	Type         string       `json:"type"`
	Assistant    Assistant    `json:"assistant"`
	Call         Call         `json:"call"`
	Customer     *Customer    `json:"customer,omitempty"`
	FunctionCall FunctionCall `json:"functionCall"`

	Summary         string          `json:"summary"`
	Analysis        *Analysis       `json:"analysis,omitempty"`
	DurationSeconds *float64        `json:"durationSeconds"`
	Transcript      json.RawMessage `json:"transcript"`
}

type Assistant struct {
	// Metadata is set when the assistant is created and cannot be changed by
	// the model, so values here are trusted.
	Metadata map[string]any `json:"metadata"`
}

type Call struct {
	ID       string    `json:"id"`
	Customer *Customer `json:"customer,omitempty"`
}

type Customer struct {
	Number string `json:"number"`
}

type Analysis struct {
	Summary string `json:"summary"`
}

// FunctionCall parameters are extracted by the model from the conversation
// and are untrusted.
type FunctionCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// TrustedShopID is the shop id from assistant metadata.
func (m Message) TrustedShopID() string {
	return stringValue(m.Assistant.Metadata["shopId"])
}

// UntrustedShopID is the shop id the model passed as a parameter.
func (m Message) UntrustedShopID() string {
	return m.Param("shopId")
}

// Param returns the first non-empty parameter among names, as a trimmed string.
func (m Message) Param(names ...string) string {
	for _, n := range names {
		if v := stringValue(m.FunctionCall.Parameters[n]); v != "" {
			return v
		}
	}
	return ""
}

// CallerNumber prefers the top-level customer over the call's customer.
func (m Message) CallerNumber() string {
	if m.Customer != nil && m.Customer.Number != "" {
		return m.Customer.Number
	}
	if m.Call.Customer != nil {
		return m.Call.Customer.Number
	}
	return ""
}

// Report converts an event into the processor's input. The shop id comes
// from metadata only; end-of-call events carry no model parameters.
func (m Message) Report() calls.Report {
	summary := m.Summary
	if summary == "" && m.Analysis != nil {
		summary = m.Analysis.Summary
	}
	return calls.Report{
		Type:            m.Type,
		ShopID:          m.TrustedShopID(),
		CallID:          m.Call.ID,
		CallerPhone:     m.CallerNumber(),
		Summary:         summary,
		DurationSeconds: m.DurationSeconds,
		Transcript:      m.Transcript,
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
