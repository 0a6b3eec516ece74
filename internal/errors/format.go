package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	pe, ok := As(err)
	if !ok {
		pe = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", pe.Message))
	if pe.Cause != nil && pe.Cause.Error() != pe.Message {
		sb.WriteString(fmt.Sprintf("  Cause: %s\n", pe.Cause.Error()))
	}
	if pe.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", pe.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", pe.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error,
// used by `search --json` when a query fails.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	pe, ok := As(err)
	if !ok {
		pe = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       pe.Code,
		Message:    pe.Message,
		Category:   string(pe.Category),
		Severity:   string(pe.Severity),
		Details:    pe.Details,
		Suggestion: pe.Suggestion,
	}
	if pe.Cause != nil {
		je.Cause = pe.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}

	pe, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", pe.Code,
		"message", pe.Message,
		"category", string(pe.Category),
		"severity", string(pe.Severity),
	}
	if pe.Cause != nil {
		attrs = append(attrs, "cause", pe.Cause.Error())
	}
	for k, v := range pe.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
