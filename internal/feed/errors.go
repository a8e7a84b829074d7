package feed

import "fmt"

// ParseReason says why a document was rejected.
type ParseReason int

const (
	ReasonMalformed ParseReason = iota
	ReasonUnsupportedNamespace
	ReasonMissingField
	ReasonMissingLink
)

func (r ParseReason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed document"
	case ReasonUnsupportedNamespace:
		return "unsupported document type"
	case ReasonMissingField:
		return "missing required field"
	case ReasonMissingLink:
		return "missing required link"
	default:
		return "invalid document"
	}
}

// ParseError is returned for any document that cannot become a Feed.
type ParseError struct {
	Reason ParseReason
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse feed: " + e.Reason.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(reason ParseReason, format string, args ...interface{}) *ParseError {
	return &ParseError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
