package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/daystreak/internal/logger"
)

var (
	// ErrValidation marks input rejected locally (bad date key, mood out of range, empty name)
	ErrValidation = stderrors.New("validation failed")
	// ErrNotEditable is returned when a habit is changed outside its edit window
	ErrNotEditable = stderrors.New("habit can no longer be edited")
	// ErrTransient marks a remote failure that survived every retry
	ErrTransient = stderrors.New("remote store unavailable")
	// ErrUnauthorized is returned when the server rejects the credential
	ErrUnauthorized = stderrors.New("not authorized")
	// ErrNotFound is returned when a habit or record does not exist
	ErrNotFound = stderrors.New("not found")
)

// Kind is the category an error falls into for handling purposes
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTransient
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Classify maps err onto the error taxonomy
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case stderrors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case stderrors.Is(err, ErrValidation), stderrors.Is(err, ErrNotEditable):
		return KindValidation
	case stderrors.Is(err, ErrTransient):
		return KindTransient
	case stderrors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err, "kind", Classify(err))
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
