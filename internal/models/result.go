package models

import (
	"encoding/json"
	"fmt"
)

// ResultKind distinguishes a timed result from a faulted one.
type ResultKind string

const (
	ResultTime  ResultKind = "time"
	ResultFault ResultKind = "fault"
)

// Result is the outcome of an attempt: either a time in centiseconds or a
// fault code, never both. The fields are unexported so the invariant holds
// by construction; use TimeResult or FaultResult.
type Result struct {
	kind         ResultKind
	centiseconds int
	faultCode    string
}

// TimeResult builds a timed result. Range validation beyond non-negativity
// (the submission ceiling, node caps) belongs to the ledger.
func TimeResult(centiseconds int) (Result, error) {
	if centiseconds < 0 {
		return Result{}, fmt.Errorf("centiseconds must not be negative, got %d", centiseconds)
	}
	return Result{kind: ResultTime, centiseconds: centiseconds}, nil
}

// FaultResult builds a faulted result with a non-empty fault code.
func FaultResult(code string) (Result, error) {
	if code == "" {
		return Result{}, fmt.Errorf("fault code must not be empty")
	}
	return Result{kind: ResultFault, faultCode: code}, nil
}

// Kind returns the result kind; empty for a zero-value (malformed) result.
func (r Result) Kind() ResultKind {
	return r.kind
}

// Centiseconds returns the recorded time and whether the result is timed.
func (r Result) Centiseconds() (int, bool) {
	if r.kind != ResultTime {
		return 0, false
	}
	return r.centiseconds, true
}

// FaultCode returns the fault code and whether the result is a fault.
func (r Result) FaultCode() (string, bool) {
	if r.kind != ResultFault {
		return "", false
	}
	return r.faultCode, true
}

type resultJSON struct {
	Kind         ResultKind `json:"kind"`
	Centiseconds *int       `json:"centiseconds,omitempty"`
	FaultCode    *string    `json:"fault_code,omitempty"`
}

// MarshalJSON encodes the result with only the field its kind allows.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Kind: r.kind}
	switch r.kind {
	case ResultTime:
		cs := r.centiseconds
		out.Centiseconds = &cs
	case ResultFault:
		code := r.faultCode
		out.FaultCode = &code
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a result, rejecting shapes that populate both or
// neither variant.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case ResultTime:
		if in.Centiseconds == nil || in.FaultCode != nil {
			return fmt.Errorf("time result requires centiseconds and no fault code")
		}
		res, err := TimeResult(*in.Centiseconds)
		if err != nil {
			return err
		}
		*r = res
	case ResultFault:
		if in.FaultCode == nil || in.Centiseconds != nil {
			return fmt.Errorf("fault result requires a fault code and no centiseconds")
		}
		res, err := FaultResult(*in.FaultCode)
		if err != nil {
			return err
		}
		*r = res
	default:
		return fmt.Errorf("unknown result kind %q", in.Kind)
	}
	return nil
}
