package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// AttemptCount is a count of recent failed automated attempts.
//
// Decoding never fails: a JSON value that is not an integer (a string, a
// fraction, null) is kept as a non-integer count so the validator can report
// it as a wrong-type condition in its fixed check order. An integer literal
// too large for int saturates and keeps its raw text.
type AttemptCount struct {
	value int
	raw   string
	isInt bool
}

// Attempts returns an integer attempt count.
func Attempts(n int) AttemptCount {
	return AttemptCount{value: n, isInt: true}
}

// NotAnInteger returns a count carrying a non-integer raw value.
func NotAnInteger(raw string) AttemptCount {
	return AttemptCount{raw: raw}
}

// Int returns the count and whether it is an integer.
func (a AttemptCount) Int() (int, bool) {
	return a.value, a.isInt
}

func (a AttemptCount) String() string {
	if a.isInt && a.raw == "" {
		return strconv.Itoa(a.value)
	}
	if a.raw == "" {
		return "<missing>"
	}
	return a.raw
}

func (a *AttemptCount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	n, err := strconv.Atoi(string(trimmed))
	switch {
	case err == nil:
		*a = Attempts(n)
	case errors.Is(err, strconv.ErrRange):
		*a = AttemptCount{value: n, raw: string(trimmed), isInt: true}
	default:
		*a = NotAnInteger(string(trimmed))
	}
	return nil
}

func (a AttemptCount) MarshalJSON() ([]byte, error) {
	if a.isInt && a.raw == "" {
		return []byte(strconv.Itoa(a.value)), nil
	}
	if a.raw == "" {
		return []byte("null"), nil
	}
	if json.Valid([]byte(a.raw)) {
		return []byte(a.raw), nil
	}
	return json.Marshal(a.raw)
}
