package chatmemory

import (
	stderrors "errors"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds surfaced by the chat memory packages. Match them with errors.Is.
var (
	ErrInvalidArgument = stderrors.New("invalid argument")
	ErrDecode          = stderrors.New("decode error")
	ErrEncode          = stderrors.New("encode error")
	ErrStore           = stderrors.New("store error")
)

// kindError tags a cause with one of the error kinds above while keeping the
// cause reachable through Unwrap and errors.Cause.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.cause.Error()
}

func (e *kindError) Cause() error { return e.cause }

func (e *kindError) Unwrap() []error { return []error{e.kind, e.cause} }

// WithKind attaches kind to err. A nil err stays nil.
func WithKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, cause: err}
}

// InvalidArgumentf builds an ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...any) error {
	return WithKind(ErrInvalidArgument, errors.Errorf(format, args...))
}

// StoreError wraps a backend failure as ErrStore.
func StoreError(err error, message string) error {
	if err == nil {
		return nil
	}
	return WithKind(ErrStore, errors.Wrap(err, message))
}

// RequireConversationID rejects empty and whitespace-only ids.
func RequireConversationID(id string) error {
	if strings.TrimSpace(id) != "" {
		return nil
	}
	return InvalidArgumentf("chat memory: conversationId cannot be null or empty")
}
