package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrProctorAccessOnly ErrCode = "PROCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrEmptyExam        ErrCode = "EMPTY_EXAM"
	ErrUnsavedAnswer    ErrCode = "UNSAVED_ANSWER"
	ErrSaveFailed       ErrCode = "SAVE_FAILED"
	ErrSubmitFailed     ErrCode = "SUBMIT_FAILED"
	ErrSessionExpired   ErrCode = "SESSION_EXPIRED"
	ErrLockdownActive   ErrCode = "LOCKDOWN_ACTIVE"
	ErrAttemptActive    ErrCode = "ATTEMPT_ALREADY_ACTIVE"

	// ─── Realtime / signaling ──────────────────────────────────────────
	ErrSignalingFailure ErrCode = "SIGNALING_FAILURE"

	// ─── Rate limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrProctorAccessOnly:
		return "This resource is restricted to proctors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrAlreadySubmitted:
		return "This exam has already been submitted."
	case ErrEmptyExam:
		return "This exam has no questions."
	case ErrUnsavedAnswer:
		return "Save your current answer before navigating."
	case ErrSaveFailed:
		return "Saving the answer failed. Please try again."
	case ErrSubmitFailed:
		return "Submission failed. Your answers are kept; please retry."
	case ErrSessionExpired:
		return "The stored session has expired. Start the exam fresh."
	case ErrLockdownActive:
		return "Acknowledge the lockdown violation before continuing."
	case ErrAttemptActive:
		return "An attempt for this exam is already in progress."

	// ─── Realtime / signaling ──────────────────────────────────────────
	case ErrSignalingFailure:
		return "Peer connection negotiation failed."

	// ─── Rate limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
