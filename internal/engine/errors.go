package engine

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindDocumentLoad  Kind = "document_load"
	KindIndexBuild    Kind = "index_build"
	KindChainBuild    Kind = "chain_build"
	KindQuery         Kind = "query"
)

// Sentinels matched through errors.Is against any *Error of the same kind.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrDocumentLoad  = &Error{Kind: KindDocumentLoad}
	ErrIndexBuild    = &Error{Kind: KindIndexBuild}
	ErrChainBuild    = &Error{Kind: KindChainBuild}
	ErrQuery         = &Error{Kind: KindQuery}
)

// Error is a classified engine failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	label := kindLabel(e.Kind)
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", label, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", label, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", label, e.Op)
	default:
		return label
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func kindLabel(kind Kind) string {
	switch kind {
	case KindConfiguration:
		return "configuration error"
	case KindDocumentLoad:
		return "document load error"
	case KindIndexBuild:
		return "index build error"
	case KindChainBuild:
		return "chain build error"
	case KindQuery:
		return "query error"
	default:
		return "engine error"
	}
}

// ConfigurationError wraps err as a configuration failure.
func ConfigurationError(op string, err error) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// DocumentLoadError wraps err as a document load failure.
func DocumentLoadError(op string, err error) error {
	return &Error{Kind: KindDocumentLoad, Op: op, Err: err}
}

// IndexBuildError wraps err as an index build failure.
func IndexBuildError(op string, err error) error {
	return &Error{Kind: KindIndexBuild, Op: op, Err: err}
}

// ChainBuildError wraps err as a retrieval chain build failure.
func ChainBuildError(op string, err error) error {
	return &Error{Kind: KindChainBuild, Op: op, Err: err}
}

// QueryError wraps err as a query failure.
func QueryError(op string, err error) error {
	return &Error{Kind: KindQuery, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind, true
	}
	return "", false
}
