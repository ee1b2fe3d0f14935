package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrTestNotFound    ErrCode = "TEST_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrNoTestSelected   ErrCode = "NO_TEST_SELECTED"
	ErrExamNotRunning   ErrCode = "EXAM_NOT_RUNNING"
	ErrExamNotReady     ErrCode = "EXAM_NOT_READY"
	ErrExamNotSubmitted ErrCode = "EXAM_NOT_SUBMITTED"
	ErrCameraRequired   ErrCode = "CAMERA_REQUIRED"
	ErrQuestionUnknown  ErrCode = "QUESTION_UNKNOWN"
	ErrIndexOutOfRange  ErrCode = "INDEX_OUT_OF_RANGE"
	ErrSessionClosed    ErrCode = "SESSION_CLOSED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is limited to candidates."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrTestNotFound:
		return "Test not found."
	case ErrSessionNotFound:
		return "Exam session not found."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrNoTestSelected:
		return "No test has been selected for this session."
	case ErrExamNotRunning:
		return "The exam is not running."
	case ErrExamNotReady:
		return "The exam is not awaiting start."
	case ErrExamNotSubmitted:
		return "The exam has not been submitted yet."
	case ErrCameraRequired:
		return "Camera access is required to start the exam."
	case ErrQuestionUnknown:
		return "The question does not belong to this test."
	case ErrIndexOutOfRange:
		return "Question index is out of range."
	case ErrSessionClosed:
		return "This exam session has been closed."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
