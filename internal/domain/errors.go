package domain

import (
	"errors"
	"fmt"
	"time"
)

// Stage names the pipeline stage a rejection originated from.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageParse     Stage = "parse"
	StageNormalize Stage = "normalize"
)

// ParseReason classifies parse failures.
type ParseReason string

const (
	ParseUnknownLayout ParseReason = "UnknownLayout"
	ParseMissingField  ParseReason = "MissingField"
)

// ParseError reports a page that could not be turned into a
// ParsedRecord. Snippet carries a bounded excerpt of the raw markup for
// triage.
type ParseError struct {
	Reason  ParseReason
	Field   string
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse: %s (%s)", e.Reason, e.Field)
	}
	return fmt.Sprintf("parse: %s", e.Reason)
}

// NormalizeReason classifies normalization failures.
type NormalizeReason string

const (
	NormUnparseableDate      NormalizeReason = "UnparseableDate"
	NormUnmappedZone         NormalizeReason = "UnmappedZone"
	NormUnmappedDangerRating NormalizeReason = "UnmappedDangerRating"
)

// NormalizationError reports a ParsedRecord field that could not be
// mapped onto the stable schema. Value is the verbatim field content.
type NormalizationError struct {
	Field  string
	Reason NormalizeReason
	Value  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s (%q)", e.Field, e.Reason, e.Value)
}

// FetchReason classifies fetch failures.
type FetchReason string

const (
	FetchTimeout    FetchReason = "Timeout"
	FetchHTTPStatus FetchReason = "HttpStatus"
)

// FetchError reports a permanently failed fetch. It flows through the
// pipeline as a rejected record, not a crash.
type FetchError struct {
	URL    string
	Reason FetchReason
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Reason == FetchHTTPStatus {
		return fmt.Sprintf("fetch %s: HttpStatus(%d)", e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Rejection is one row of the rejection log.
type Rejection struct {
	SourceURL string    `json:"source_url"`
	Stage     Stage     `json:"stage"`
	Reason    string    `json:"reason"`
	Snippet   string    `json:"snippet,omitempty"`
	At        time.Time `json:"at"`
}

// NewRejection classifies err into a rejection-log row. It recognizes
// the pipeline's typed errors and falls back to the raw error string
// for anything else, so no failure is ever logged without a reason.
func NewRejection(sourceURL string, stage Stage, err error) Rejection {
	rej := Rejection{
		SourceURL: sourceURL,
		Stage:     stage,
		Reason:    "Unknown",
		At:        clock.Now(),
	}
	if err == nil {
		return rej
	}

	var pe *ParseError
	var ne *NormalizationError
	var fe *FetchError
	switch {
	case errors.As(err, &pe):
		rej.Reason = string(pe.Reason)
		rej.Snippet = pe.Snippet
		if pe.Field != "" {
			rej.Reason = fmt.Sprintf("%s(%s)", pe.Reason, pe.Field)
		}
	case errors.As(err, &ne):
		rej.Reason = string(ne.Reason)
		rej.Snippet = ne.Value
	case errors.As(err, &fe):
		rej.Reason = string(fe.Reason)
		if fe.Reason == FetchHTTPStatus {
			rej.Reason = fmt.Sprintf("HttpStatus(%d)", fe.Status)
		}
	default:
		rej.Reason = err.Error()
	}
	return rej
}
