package game

import "errors"

// Sentinel errors for the progression core. Callers classify with errors.Is
// and map them to transport codes at the edge.
var (
	// ErrPermissionDenied marks operations the current state disallows:
	// answering without an active session, re-entering a cleared level,
	// touching another user's session, or answer/question mismatch.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound marks missing entities.
	ErrNotFound = errors.New("not found")

	// ErrQuestionPoolExhausted means every fallback tier of the picker came
	// up empty. It is a NotFound condition.
	ErrQuestionPoolExhausted = errors.New("question pool exhausted")

	// ErrValidation marks malformed input, e.g. a batch whose size does not
	// match the level type.
	ErrValidation = errors.New("validation failed")

	// ErrSessionAlreadyCompleted rejects duplicate submissions against a
	// resolved session. It is a PermissionDenied condition.
	ErrSessionAlreadyCompleted = errors.New("session already completed")

	// ErrDataIntegrity is fatal and never user-recoverable: the store holds
	// state that the invariants forbid (e.g. a half-completed boss batch).
	// It must surface to operators, never be swallowed.
	ErrDataIntegrity = errors.New("data integrity violation")
)

// IsPermissionDenied reports whether err belongs to the 403 family.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrSessionAlreadyCompleted)
}

// IsNotFound reports whether err belongs to the 404 family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrQuestionPoolExhausted)
}

// IsValidation reports whether err belongs to the 400 family.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDataIntegrity reports whether err is a fatal store-state violation.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity)
}
