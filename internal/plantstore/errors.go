package plantstore

import (
	"encoding/json"
	"strings"

	"github.com/starford/plantcare/internal/apperr"
)

const maxRawErrorLen = 200

type errorBody struct {
	Body    json.RawMessage `json:"body"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// decodeError extracts a readable message from a non-2xx response body. The
// store sometimes wraps its real error as a JSON string under "body".
func decodeError(op string, status int, body []byte) *apperr.StatusError {
	return &apperr.StatusError{Op: op, Status: status, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		if len(text) < maxRawErrorLen {
			return text
		}
		return ""
	}
	if msg := wrappedMessage(eb.Body); msg != "" {
		return msg
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}

func wrappedMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	inner := []byte(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		inner = []byte(s)
	}
	var eb errorBody
	if err := json.Unmarshal(inner, &eb); err != nil {
		if strings.Contains(strings.ToLower(s), "error") {
			return s
		}
		return ""
	}
	if eb.Error != "" {
		return eb.Error
	}
	return eb.Message
}
