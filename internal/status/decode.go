package status

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// Decode stages, in pipeline order.
const (
	StageEnvelope = "envelope"
	StageBase64   = "base64"
	StageUTF8     = "utf8"
	StagePayload  = "payload"
)

// DecodeError reports which stage of the decode pipeline rejected a message.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// wireStatus is the payload object. Pointers detect missing fields.
type wireStatus struct {
	State      *uint8 `json:"state"`
	Remaining  *int64 `json:"remaining"`
	Count      *uint8 `json:"count"`
	NPomodoros *uint8 `json:"n_pomodoros"`
}

// Decode parses one inbound message: a JSON string holding base64 of a UTF-8
// JSON object. Any stage failing returns a *DecodeError and a zero Snapshot.
func Decode(raw []byte) (Snapshot, error) {
	var envelope string
	if err := strictUnmarshal(raw, &envelope); err != nil {
		return Snapshot{}, &DecodeError{Stage: StageEnvelope, Err: err}
	}

	payload, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return Snapshot{}, &DecodeError{Stage: StageBase64, Err: err}
	}

	if !utf8.Valid(payload) {
		return Snapshot{}, &DecodeError{Stage: StageUTF8, Err: errors.New("payload is not valid UTF-8")}
	}

	var w wireStatus
	if err := strictUnmarshal(payload, &w); err != nil {
		return Snapshot{}, &DecodeError{Stage: StagePayload, Err: err}
	}
	if err := w.complete(); err != nil {
		return Snapshot{}, &DecodeError{Stage: StagePayload, Err: err}
	}

	return Snapshot{
		State:     stateFromWire(*w.State),
		Remaining: time.Duration(*w.Remaining),
		Count:     *w.Count,
		Total:     *w.NPomodoros,
	}, nil
}

func (w wireStatus) complete() error {
	var missing []string
	if w.State == nil {
		missing = append(missing, "state")
	}
	if w.Remaining == nil {
		missing = append(missing, "remaining")
	}
	if w.Count == nil {
		missing = append(missing, "count")
	}
	if w.NPomodoros == nil {
		missing = append(missing, "n_pomodoros")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields %v", missing)
	}
	return nil
}

// Encode is the inverse of Decode. Unknown encodes as state 0.
func Encode(s Snapshot) ([]byte, error) {
	code := uint8(s.State)
	if s.State > Paused {
		code = uint8(Unknown)
	}
	rem := int64(s.Remaining)
	w := wireStatus{State: &code, Remaining: &rem, Count: &s.Count, NPomodoros: &s.Total}
	payload, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(payload))
}

func strictUnmarshal(b []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(out); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("trailing data")
		}
		return err
	}
	return nil
}
