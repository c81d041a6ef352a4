package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType indicates a record decoded to JSON but carries no type tag.
var ErrMissingType = errors.New("event: missing type field")

// Decode parses one raw record into an Event.
//
// A decode failure means the record is malformed and should be dropped by the
// caller; it never aborts the stream. Records with an unrecognized type decode
// successfully and are forwarded as-is, so the server vocabulary can grow
// without client changes.
func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("event: decode: %w", err)
	}
	if e.Type == "" {
		return Event{}, ErrMissingType
	}
	return e, nil
}

// Encode serializes an event for the wire. Used by the replay server and the
// journal; the consuming side only decodes.
func Encode(e Event) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("event: encode: %w", err)
	}
	return raw, nil
}
