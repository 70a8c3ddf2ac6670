// Package decode turns JSON-ish text from a sampled language model into Go
// values. A parse is tried as-is first; if that fails the text goes through
// a fixed, ordered list of repairs and is parsed one more time. Anything
// still broken yields the caller's fallback.
package decode

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// Outcome labels how a decode ended.
type Outcome string

const (
	OutcomeDirect   Outcome = "direct"
	OutcomeRepaired Outcome = "repaired"
	OutcomeFailed   Outcome = "failed"
)

// ErrUnrecoverable is returned by Into when neither the raw nor the repaired
// text parses.
var ErrUnrecoverable = errors.New("decode: unrecoverable input")

const sampleLen = 160

// Decoder carries the logger and an optional outcome hook.
type Decoder struct {
	log     *zap.Logger
	observe func(Outcome)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger failures are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// WithObserver registers fn to be called once per decode with its outcome.
func WithObserver(fn func(Outcome)) Option {
	return func(d *Decoder) { d.observe = fn }
}

// New returns a Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{log: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var std = New()

// Into parses raw into dst, repairing once if the text is not valid JSON.
// dst must be a pointer. A type mismatch is not repaired and may leave dst
// partially written.
func (d *Decoder) Into(raw string, dst any) (Outcome, error) {
	outcome, err := d.into(raw, dst)
	if d.observe != nil {
		d.observe(outcome)
	}
	return outcome, err
}

func (d *Decoder) into(raw string, dst any) (Outcome, error) {
	text, outcome := []byte(raw), OutcomeDirect
	if !json.Valid(text) {
		text, outcome = []byte(Clean(raw)), OutcomeRepaired
	}

	var err error
	if !json.Valid(text) {
		err = errors.New("invalid JSON after repair")
	} else {
		err = json.Unmarshal(text, dst)
	}
	if err != nil {
		d.log.Warn("Generated JSON could not be recovered",
			zap.Error(err),
			zap.Int("length", len(raw)),
			zap.String("sample", sample(raw)))
		return OutcomeFailed, ErrUnrecoverable
	}

	if outcome == OutcomeRepaired {
		d.log.Debug("Generated JSON repaired", zap.Int("length", len(raw)))
	}
	return outcome, nil
}

// Value decodes raw into a fresh T, or returns fallback when it cannot.
// It never panics and never reports an error.
func Value[T any](d *Decoder, raw string, fallback T) T {
	if d == nil {
		d = std
	}
	var v T
	if _, err := d.Into(raw, &v); err != nil {
		return fallback
	}
	return v
}

// Decode is Value with the package default decoder.
func Decode[T any](raw string, fallback T) T {
	return Value(std, raw, fallback)
}

func sample(s string) string {
	if len(s) <= sampleLen {
		return s
	}
	return s[:sampleLen] + "..."
}
