package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrSessionExpired      ErrCode = "SESSION_EXPIRED"
	ErrDuplicateSubmission ErrCode = "DUPLICATE_SUBMISSION"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStoreUnavailable ErrCode = "STORE_UNAVAILABLE"
	ErrPersistFailed    ErrCode = "PERSIST_FAILED"
	ErrInternal         ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Username or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrSessionExpired:
		// Deliberately identical for expired and unknown paper ids.
		return "The exam session has expired or does not exist."
	case ErrDuplicateSubmission:
		return "Answers for this paper are already being graded. Do not resubmit."
	case ErrNoQuestions:
		return "No questions are currently available for your organization."
	case ErrStoreUnavailable:
		return "The session backend is temporarily unavailable. Please try again."
	case ErrPersistFailed:
		return "Your results could not be saved. Please try again."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
