// Package tools is the boundary to the voice platform: it decodes the
// loosely-typed tool invocations (book / check availability / cancel),
// validates argument presence and shape with caller-specific prompts, and
// dispatches to the scheduling services.
package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Tool names accepted from the voice platform.
const (
	ToolBookAppointment   = "book_appointment"
	ToolCheckAvailability = "check_availability"
	ToolCancelAppointment = "cancel_appointment"
)

// Invocation is one tool call as delivered by the voice platform. Arguments
// are raw JSON; nothing about their shape is trusted until parsed.
type Invocation struct {
	OrgID     string          `json:"org_id"`
	CallID    string          `json:"call_id,omitempty"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// Response is returned to the voice platform. Message is spoken verbatim by
// the agent and is a complete sentence on every path.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// BookArgs are the arguments for book_appointment.
type BookArgs struct {
	Datetime string `json:"datetime"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// CheckArgs are the arguments for check_availability.
type CheckArgs struct {
	Date string `json:"date"`
}

// CancelArgs are the arguments for cancel_appointment.
type CancelArgs struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason,omitempty"`
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const (
	promptMissingDate = "What day would you like to come in?"
	promptBadDate     = "I'm sorry, I didn't catch the date. Could you say it again?"
)

// parseBookArgs decodes book_appointment arguments. Field-level validation
// happens in the booking service; only JSON shape is checked here.
func parseBookArgs(raw json.RawMessage) (*BookArgs, string) {
	var args BookArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, "I'm sorry, I didn't catch the appointment details. Could you repeat them?"
	}
	return &args, ""
}

// parseCheckArgs decodes and validates check_availability arguments. The
// date must be a plain calendar date; an unparseable one is re-asked, not
// sent to the database.
func parseCheckArgs(raw json.RawMessage) (*CheckArgs, string) {
	var args CheckArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, promptBadDate
	}
	args.Date = strings.TrimSpace(args.Date)
	if args.Date == "" {
		return nil, promptMissingDate
	}
	if !datePattern.MatchString(args.Date) {
		return nil, promptBadDate
	}
	return &args, ""
}

// parseCancelArgs decodes cancel_appointment arguments.
func parseCancelArgs(raw json.RawMessage) (*CancelArgs, string) {
	var args CancelArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, "Could you give me the phone number you booked with?"
	}
	if strings.TrimSpace(args.Phone) == "" {
		return nil, "Could you give me the phone number you booked with?"
	}
	return &args, ""
}

func decodeArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("tools: empty arguments")
	}
	return json.Unmarshal(raw, out)
}
