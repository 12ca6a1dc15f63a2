package ndjson

import (
	"encoding/json"
	"fmt"

	"github.com/fastapicloud/buildlogs"
)

// Wire values of the "type" discriminator.
const (
	typeMessage  = "message"
	typeComplete = "complete"
	typeFailed   = "failed"
)

// messageDTO is the JSON representation of a message record.
type messageDTO struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// terminalDTO is the JSON representation of a complete or failed record.
type terminalDTO struct {
	Type string `json:"type"`
}

// Decode interprets one non-blank line as a Record. A missing "type" means
// "message". Anything that is not a JSON object of a known shape yields a
// *buildlogs.DecodeError; no partial record is ever returned.
func Decode(line string) (buildlogs.Record, error) {
	// Fields are looked up by exact key; encoding/json's case-insensitive
	// struct matching would accept "Type" or "MESSAGE".
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil, &buildlogs.DecodeError{Line: line, Err: err}
	}
	if fields == nil {
		return nil, &buildlogs.DecodeError{Line: line, Err: buildlogs.ErrUnknownRecord}
	}

	typ := typeMessage
	if raw, ok := fields["type"]; ok {
		s, ok := stringField(raw)
		if !ok {
			return nil, &buildlogs.DecodeError{Line: line, Err: fmt.Errorf("type is not a string: %w", buildlogs.ErrUnknownRecord)}
		}
		typ = s
	}

	switch typ {
	case typeMessage:
		raw, ok := fields["message"]
		if !ok {
			return nil, &buildlogs.DecodeError{Line: line, Err: fmt.Errorf("message record without message: %w", buildlogs.ErrUnknownRecord)}
		}
		text, ok := stringField(raw)
		if !ok {
			return nil, &buildlogs.DecodeError{Line: line, Err: fmt.Errorf("message is not a string: %w", buildlogs.ErrUnknownRecord)}
		}
		return buildlogs.RecordMessage{Text: text}, nil
	case typeComplete:
		return buildlogs.RecordComplete{}, nil
	case typeFailed:
		return buildlogs.RecordFailed{}, nil
	default:
		return nil, &buildlogs.DecodeError{Line: line, Err: fmt.Errorf("type %q: %w", typ, buildlogs.ErrUnknownRecord)}
	}
}

// stringField decodes raw as a JSON string. null and non-strings report false.
func stringField(raw json.RawMessage) (string, bool) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}

// Encode returns the canonical wire line for r, including the trailing '\n'.
func Encode(r buildlogs.Record) ([]byte, error) {
	var v any
	switch rec := r.(type) {
	case buildlogs.RecordMessage:
		v = messageDTO{Message: rec.Text, Type: typeMessage}
	case buildlogs.RecordComplete:
		v = terminalDTO{Type: typeComplete}
	case buildlogs.RecordFailed:
		v = terminalDTO{Type: typeFailed}
	default:
		return nil, fmt.Errorf("encode %T: %w", r, buildlogs.ErrUnknownRecord)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
