package reolink

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

/*
 *  Responses are a single object in an array:
 *
 *    [{"cmd": "Login", "code": 0, "value": {"Token": {...}}}]
 *    [{"cmd": "GetUser", "code": 0, "value": {...}, "initial": {...}, "range": {...}}]
 *    [{"cmd": "Login", "code": 1, "error": {"rspCode": -7, "detail": "login failed"}}]
 *
 *  The success/error discriminator is the numeric "code" member, so the element
 *  is first read generically and only then decoded against the caller's types.
 *  Some firmware merges the payload members into the element instead of
 *  nesting them under "value"; both forms are accepted.
 */

// The envelope's members, with "cmd" removed (and "code" on success)
type envelope map[string]json.RawMessage

func splitEnvelope(cmd string, body []byte) (envelope, int64, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, 0, &FormatError{Cmd: cmd, Msg: "expecting a JSON array", Err: err}
	}

	if len(elems) != 1 {
		return nil, 0, &FormatError{Cmd: cmd, Msg: fmt.Sprintf("expecting exactly one element, got %d", len(elems))}
	}

	var env envelope
	if err := json.Unmarshal(elems[0], &env); err != nil || env == nil {
		return nil, 0, &FormatError{Cmd: cmd, Msg: "expecting an object", Err: err}
	}

	if _, ok := env["cmd"]; !ok {
		return nil, 0, &FormatError{Cmd: cmd, Msg: "missing field 'cmd'"}
	}
	delete(env, "cmd")

	rawCode, ok := env["code"]
	if !ok {
		return nil, 0, &FormatError{Cmd: cmd, Msg: "missing field 'code'"}
	}

	// A JSON null would otherwise leave the code at zero, ie. success
	var pcode *int64
	if err := json.Unmarshal(rawCode, &pcode); err != nil || pcode == nil {
		return nil, 0, &FormatError{Cmd: cmd, Msg: "'code' is not an integer", Err: err}
	}
	code := *pcode

	// Only keep 'code' if we don't have a successful response
	if code == 0 {
		delete(env, "code")
	}

	return env, code, nil
}

func (env envelope) apiError(cmd string, code int64) error {
	apiErr := &APIError{Code: int(code)}

	raw, ok := env["error"]
	if !ok {
		return &DecodeError{Cmd: cmd, Slot: "error", Err: errors.New("missing field 'error'")}
	}
	if err := json.Unmarshal(raw, &apiErr.Err); err != nil {
		return &DecodeError{Cmd: cmd, Slot: "error", Err: err}
	}

	return apiErr
}

// value returns the main payload: the "value" member, or all remaining members
// when the payload is merged into the element
func (env envelope) value() (json.RawMessage, error) {
	if raw, ok := env["value"]; ok {
		return raw, nil
	}

	merged := make(map[string]json.RawMessage, len(env))
	for k, v := range env {
		if k == "initial" || k == "range" {
			continue
		}
		merged[k] = v
	}

	return json.Marshal(merged)
}

func decodeSlot(cmd, slot string, raw json.RawMessage, present bool, dst interface{}, strict bool) error {
	if _, ok := dst.(*NotApplicable); ok {
		return nil
	}

	if !present {
		return &DecodeError{Cmd: cmd, Slot: slot, Err: errors.Errorf("missing field '%s'", slot)}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(dst); err != nil {
		return &DecodeError{Cmd: cmd, Slot: slot, Err: err}
	}

	return nil
}

func decodeResponse[Resp any](cmd string, body []byte, strict bool) (Resp, error) {
	var resp Resp

	env, code, err := splitEnvelope(cmd, body)
	if err != nil {
		return resp, err
	}
	if code != 0 {
		return resp, env.apiError(cmd, code)
	}

	raw, err := env.value()
	if err != nil {
		return resp, &DecodeError{Cmd: cmd, Slot: "value", Err: err}
	}
	if err := decodeSlot(cmd, "value", raw, true, &resp, strict); err != nil {
		return resp, err
	}

	return resp, nil
}

func decodeDetailedResponse[Resp, Initial, Range any](cmd string, body []byte, strict bool) (Detailed[Resp, Initial, Range], error) {
	var out Detailed[Resp, Initial, Range]

	env, code, err := splitEnvelope(cmd, body)
	if err != nil {
		return out, err
	}
	if code != 0 {
		return out, env.apiError(cmd, code)
	}

	raw, err := env.value()
	if err != nil {
		return out, &DecodeError{Cmd: cmd, Slot: "value", Err: err}
	}
	if err := decodeSlot(cmd, "value", raw, true, &out.Value, strict); err != nil {
		return out, err
	}

	initial, ok := env["initial"]
	if err := decodeSlot(cmd, "initial", initial, ok, &out.Initial, strict); err != nil {
		return out, err
	}

	rng, ok := env["range"]
	if err := decodeSlot(cmd, "range", rng, ok, &out.Range, strict); err != nil {
		return out, err
	}

	return out, nil
}
