// ABOUTME: Typed failure taxonomy for session and profile operations
// ABOUTME: Classifies provider errors into UI-facing retryable/corrective kinds

package session

import (
	"errors"
	"fmt"

	"github.com/academa/academa-portal/internal/identity"
)

// ErrFlowSuperseded is returned when an interactive sign-in resolves after a
// newer attempt has been issued; its result is discarded.
var ErrFlowSuperseded = errors.New("interactive sign-in superseded by a newer attempt")

// FailureKind partitions operation failures by how the UI should react.
type FailureKind int

const (
	// FailureValidation: malformed input, detected before any network call.
	// Corrective: the user must change their input.
	FailureValidation FailureKind = iota

	// FailureCredential: wrong password, unknown account, or an existing
	// account on register. Corrective.
	FailureCredential

	// FailureInteractiveCancelled: the user dismissed a consent pop-up, or
	// the attempt was superseded by a newer one.
	FailureInteractiveCancelled

	// FailureNetworkOrProvider: transient or provider-side failure. Retryable.
	FailureNetworkOrProvider

	// FailurePartialSave: a profile save succeeded on one side only.
	// Retryable as a whole unit.
	FailurePartialSave
)

// Failure is the typed error all session and profile operations return.
// Operations never leave the session in an undefined state alongside one.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether resubmitting the same input can succeed.
func (f *Failure) Retryable() bool {
	return f.Kind == FailureNetworkOrProvider || f.Kind == FailurePartialSave
}

func (k FailureKind) String() string {
	switch k {
	case FailureValidation:
		return "validation"
	case FailureCredential:
		return "credential"
	case FailureInteractiveCancelled:
		return "interactive-cancelled"
	case FailureNetworkOrProvider:
		return "network-or-provider"
	case FailurePartialSave:
		return "partial-save"
	default:
		return "unknown"
	}
}

// Message renders the human-readable explanation shown to the user.
func (k FailureKind) Message() string {
	switch k {
	case FailureValidation:
		return "Please check your input and try again."
	case FailureCredential:
		return "The email or password is incorrect, or the account state does not allow this."
	case FailureInteractiveCancelled:
		return "Sign-in was cancelled."
	case FailureNetworkOrProvider:
		return "A temporary problem occurred. Please try again."
	case FailurePartialSave:
		return "Your profile was only partially saved. Please retry the save."
	default:
		return "Something went wrong."
	}
}

// validationFailure wraps a pre-network input problem.
func validationFailure(format string, args ...any) *Failure {
	return &Failure{Kind: FailureValidation, Err: fmt.Errorf(format, args...)}
}

// classify maps identity-provider errors onto the failure taxonomy. A rejected
// result is treated the same regardless of whether it came from a timeout or a
// hard failure.
func classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	switch {
	case errors.Is(err, identity.ErrMalformedCredentials),
		errors.Is(err, identity.ErrUnknownProviderKind):
		return &Failure{Kind: FailureValidation, Err: err}
	case errors.Is(err, identity.ErrAccountExists),
		errors.Is(err, identity.ErrAccountNotFound),
		errors.Is(err, identity.ErrInvalidPassword),
		errors.Is(err, identity.ErrNotSignedIn):
		return &Failure{Kind: FailureCredential, Err: err}
	case errors.Is(err, identity.ErrConsentDismissed),
		errors.Is(err, ErrFlowSuperseded):
		return &Failure{Kind: FailureInteractiveCancelled, Err: err}
	default:
		return &Failure{Kind: FailureNetworkOrProvider, Err: err}
	}
}
