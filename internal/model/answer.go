// Package model defines the core types shared across the solver: answers,
// tasks, submission payloads, and run history.
package model

import (
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// AnswerKind tags the variant held by an Answer.
type AnswerKind string

const (
	AnswerNull     AnswerKind = "null"
	AnswerNumber   AnswerKind = "number"
	AnswerBool     AnswerKind = "bool"
	AnswerText     AnswerKind = "text"
	AnswerMapping  AnswerKind = "mapping"
	AnswerSequence AnswerKind = "sequence"
)

// MaxTextLen caps the length of a text answer. Longer text is truncated,
// never rejected.
const MaxTextLen = 2000

// Answer is a tagged value produced by exactly one extractor per task.
// It is immutable once produced and JSON-encodes as the naked value
// ("answer": 42, not "answer": {"kind": ...}).
type Answer struct {
	kind AnswerKind
	num  float64
	b    bool
	text string
	m    map[string]Answer
	seq  []Answer
}

// Null returns the null answer.
func Null() Answer { return Answer{kind: AnswerNull} }

// Number returns a numeric answer.
func Number(v float64) Answer { return Answer{kind: AnswerNumber, num: v} }

// Bool returns a boolean answer.
func Bool(v bool) Answer { return Answer{kind: AnswerBool, b: v} }

// Text returns a text answer, truncated to MaxTextLen. Truncation never
// splits a rune, so the stored text is always valid UTF-8.
func Text(s string) Answer {
	if len(s) > MaxTextLen {
		cut := MaxTextLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return Answer{kind: AnswerText, text: s}
}

// Mapping returns a string-keyed mapping answer.
func Mapping(m map[string]Answer) Answer { return Answer{kind: AnswerMapping, m: m} }

// Sequence returns a sequence answer.
func Sequence(vals []Answer) Answer { return Answer{kind: AnswerSequence, seq: vals} }

// Kind reports which variant the answer holds.
func (a Answer) Kind() AnswerKind {
	if a.kind == "" {
		return AnswerNull
	}
	return a.kind
}

// IsNull reports whether the answer is the null variant.
func (a Answer) IsNull() bool { return a.Kind() == AnswerNull }

// Num returns the numeric value; zero unless Kind is AnswerNumber.
func (a Answer) Num() float64 { return a.num }

// Str returns the text value; empty unless Kind is AnswerText.
func (a Answer) Str() string { return a.text }

// Value returns the answer as a plain Go value suitable for JSON payloads.
// Integral numbers come back as int64 so the wire form is 30, not 30.0.
func (a Answer) Value() any {
	switch a.Kind() {
	case AnswerNull:
		return nil
	case AnswerNumber:
		if a.num == math.Trunc(a.num) && !math.IsInf(a.num, 0) {
			return int64(a.num)
		}
		return a.num
	case AnswerBool:
		return a.b
	case AnswerText:
		return a.text
	case AnswerMapping:
		out := make(map[string]any, len(a.m))
		for k, v := range a.m {
			out[k] = v.Value()
		}
		return out
	case AnswerSequence:
		out := make([]any, len(a.seq))
		for i, v := range a.seq {
			out[i] = v.Value()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes the answer as its naked value.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// FromValue converts an arbitrary decoded JSON value into an Answer.
// Unsupported types produce an error rather than a silent null.
func FromValue(v any) (Answer, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case map[string]any:
		m := make(map[string]Answer, len(t))
		for k, inner := range t {
			a, err := FromValue(inner)
			if err != nil {
				return Null(), err
			}
			m[k] = a
		}
		return Mapping(m), nil
	case []any:
		seq := make([]Answer, len(t))
		for i, inner := range t {
			a, err := FromValue(inner)
			if err != nil {
				return Null(), err
			}
			seq[i] = a
		}
		return Sequence(seq), nil
	}
	return Null(), eris.Errorf("model: unsupported answer value type %T", v)
}
