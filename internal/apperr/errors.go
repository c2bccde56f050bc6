package apperr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Wjlljw/pdf-translator/pkg/log"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindExtraction
	KindTransientTranslation
	KindTranslation
	KindPlaceholderMismatch
	KindCache
	KindOutput
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindExtraction:
		return "ExtractionError"
	case KindTransientTranslation:
		return "TransientTranslationError"
	case KindTranslation:
		return "TranslationError"
	case KindPlaceholderMismatch:
		return "PlaceholderMismatchWarning"
	case KindCache:
		return "CacheError"
	case KindOutput:
		return "OutputError"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(err error, kind Kind, message string) *Error {
	e := New(kind, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// Advice returns an operator-facing hint for err.
func Advice(err error) string {
	switch KindOf(err) {
	case KindConfig:
		return "check environment variables and the settings file"
	case KindExtraction:
		return "the PDF could not be read; verify it is not encrypted, scanned, or corrupted"
	case KindTransientTranslation, KindTranslation:
		return "check the API key, network connectivity, and provider status; completed chunks are cached and the next run resumes"
	case KindPlaceholderMismatch:
		return "the model dropped formula tokens; inspect the affected chunk output"
	case KindCache:
		return "check the data directory is writable and the cache database is not locked"
	case KindOutput:
		return "ensure the output directory exists and is writable"
	case KindCanceled:
		return "the run was interrupted; rerun to resume from the cache"
	default:
		return "review the detailed error message"
	}
}

// Report logs err with its advice and reports whether it was a classified error.
func Report(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		log.Error("unclassified error: %v", err)
		return false
	}
	log.Error("%v (advice: %s)", err, Advice(err))
	return true
}
