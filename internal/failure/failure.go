// Package failure defines the error taxonomy of a preview run. Every error
// carries the source it concerns, the pipeline stage it happened in and, when
// an external tool failed, that tool's diagnostic text.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind int

const (
	// Configuration is an invalid grid, segment count or gif subset size.
	// Raised before any external call.
	Configuration Kind = iota + 1
	// DurationTooShort means the source is at or below the minimum duration
	DurationTooShort
	// GenerationExhausted means no cut point set was accepted before the
	// segment duration reached its floor
	GenerationExhausted
	// Extraction is a failed segment; fatal only when no segment survives
	Extraction
	// Assembly is a failed concat, stack or transcode
	Assembly
	// Probe means the source could not be inspected
	Probe
	// UnsupportedSource is a rotated source or a rejected codec
	UnsupportedSource
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case DurationTooShort:
		return "duration_too_short"
	case GenerationExhausted:
		return "generation_exhausted"
	case Extraction:
		return "extraction"
	case Assembly:
		return "assembly"
	case Probe:
		return "probe"
	case UnsupportedSource:
		return "unsupported_source"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage is a step of the per-video state machine
type Stage string

const (
	StageConfig     Stage = "config"
	StageProbing    Stage = "probing"
	StagePlanning   Stage = "planning"
	StageValidating Stage = "validating"
	StageExtracting Stage = "extracting"
	StageFiltering  Stage = "filtering"
	StageAssembling Stage = "assembling"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Error is a classified run failure
type Error struct {
	Kind   Kind
	Stage  Stage
	Source string
	// Output is the tail of the external tool's diagnostic text, if any
	Output string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failure during %s", e.Kind, e.Stage)
	if e.Source != "" {
		msg += fmt.Sprintf(" [%s]", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error
func New(kind Kind, stage Stage, source string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Source: source, Err: err}
}

// Errorf creates a classified error from a format string
func Errorf(kind Kind, stage Stage, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// WithOutput attaches tool output
func (e *Error) WithOutput(output string) *Error {
	e.Output = output
	return e
}

// WithSource attaches the source path when it is not yet known
func (e *Error) WithSource(source string) *Error {
	if e.Source == "" {
		e.Source = source
	}
	return e
}

// As returns the classified error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, if classified
func KindOf(err error) (Kind, bool) {
	if e, ok := As(err); ok {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsConfiguration(err error) bool       { return Is(err, Configuration) }
func IsDurationTooShort(err error) bool    { return Is(err, DurationTooShort) }
func IsGenerationExhausted(err error) bool { return Is(err, GenerationExhausted) }
func IsExtraction(err error) bool          { return Is(err, Extraction) }
func IsAssembly(err error) bool            { return Is(err, Assembly) }
