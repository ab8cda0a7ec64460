package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures. The distinction is logged but the
// user-facing remediation message stays generic.
type ErrorKind int

const (
	// KindTransport covers client construction, network and service errors.
	KindTransport ErrorKind = iota
	// KindParse means the response body was not well-formed JSON.
	KindParse
	// KindShape means the JSON was missing required fields or had wrong types.
	KindShape
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindShape:
		return "shape"
	default:
		return "transport"
	}
}

// AnalysisError wraps a failure with its classification.
type AnalysisError struct {
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func transportErr(err error) error { return &AnalysisError{Kind: KindTransport, Err: err} }
func parseErr(err error) error     { return &AnalysisError{Kind: KindParse, Err: err} }
func shapeErr(err error) error     { return &AnalysisError{Kind: KindShape, Err: err} }

const (
	msgAnalyzeFailed = "Could not analyze the image. Try again or use a different image."
	msgParseFailed   = "The analysis response could not be parsed. Try again or use a different image."
)

// UserMessage maps an analysis failure to the message shown on the item.
func UserMessage(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) && (ae.Kind == KindParse || ae.Kind == KindShape) {
		return msgParseFailed
	}
	return msgAnalyzeFailed
}
