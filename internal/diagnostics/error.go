// Package diagnostics implements the error taxonomy of §7: every backend
// operation returns a typed, tagged error so the scheduler can distinguish
// transient failures (retryable) from permanent ones, and so a diagnostic
// renderer (an external collaborator per §1/§7) has a stable code, summary,
// cause chain, and remediation hint to work from.
package diagnostics

import "fmt"

// Class distinguishes retryable failures from permanent ones.
type Class string

const (
	ClassConfiguration   Class = "configuration"
	ClassWorkspace       Class = "workspace"
	ClassVCSTransient    Class = "vcs_transient"
	ClassForgeTransient  Class = "forge_transient"
	ClassRegistryTransient Class = "registry_transient"
	ClassRegistryPermanent Class = "registry_permanent"
	ClassPinIntegrity    Class = "pin_integrity"
	ClassCancellation    Class = "cancellation"
	ClassPermanent       Class = "permanent"
)

// Error is the typed error every backend interface operation returns.
type Error struct {
	Code      string // stable error code, e.g. "RK-CYCLE"
	Summary   string // one-line human summary
	Class     Class
	Hint      string // remediation hint
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Summary, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Summary)
}

func (e *Error) Unwrap() error { return e.Cause }

// Transient reports whether the scheduler should retry the operation that
// produced this error.
func (e *Error) Transient() bool {
	switch e.Class {
	case ClassVCSTransient, ClassForgeTransient, ClassRegistryTransient:
		return true
	default:
		return false
	}
}

// New constructs a diagnostics.Error.
func New(code string, class Class, summary, hint string, cause error) *Error {
	return &Error{Code: code, Class: class, Summary: summary, Hint: hint, Cause: cause}
}

// Well-known codes referenced directly by name elsewhere in the core.
const (
	CodeCycle           = "RK-CYCLE"
	CodePinRestoreFail  = "RK-PIN-RESTORE"
	CodeManifestInvalid = "RK-MANIFEST-INVALID"
	CodeLockHeld        = "RK-LOCK-HELD"
	CodeNoChanges       = "RK-NO-CHANGES"
)

// IsTransient reports whether err (or any error it wraps) is a transient
// diagnostics.Error. Non-diagnostics errors are treated as permanent.
func IsTransient(err error) bool {
	var de *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			de = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if de == nil {
		return false
	}
	return de.Transient()
}
