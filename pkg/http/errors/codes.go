package errors

// Error codes for standardized error responses
const (
	// Identity errors
	ErrCodeIdentityRequired = "identity_required"
	ErrCodeIdentityInvalid  = "identity_invalid"
	ErrCodeForbidden        = "forbidden"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"
	ErrCodeConflict      = "conflict"

	// Progression errors
	ErrCodePoolExhausted    = "question_pool_exhausted"
	ErrCodeSessionCompleted = "session_already_completed"
	ErrCodeDataIntegrity    = "data_integrity"

	// Authoring errors
	ErrCodeWorldCreationFailed    = "world_creation_failed"
	ErrCodeQuestionCreationFailed = "question_creation_failed"
	ErrCodeAssignmentFailed       = "assignment_failed"
	ErrCodeInvalidAccessCode      = "invalid_access_code"

	// Leaderboard / reporting errors
	ErrCodeLeaderboardFetchFailed = "leaderboard_fetch_failed"
	ErrCodeStatisticsFetchFailed  = "statistics_fetch_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
