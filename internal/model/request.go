package model

// GuestLoginRequest is the payload for obtaining a candidate token.
type GuestLoginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=64"`
}

// SelectTestRequest is the payload for selecting a test.
type SelectTestRequest struct {
	TestID string `json:"test_id" binding:"required,max=120"`
}

// SetAnswerRequest stores a candidate's answer for one question.
type SetAnswerRequest struct {
	Value string `json:"value" binding:"max=10000"`
}

// JumpRequest moves the cursor to another question.
type JumpRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// AddViolationRequest raises a UI-detected violation.
type AddViolationRequest struct {
	Type    string `json:"type" binding:"required,violation_type"`
	Message string `json:"message" binding:"max=500"`
}

// FullscreenRequest reports a fullscreen transition observed by the browser.
type FullscreenRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// VisibilityRequest reports the page visibility observed by the browser.
type VisibilityRequest struct {
	Hidden *bool `json:"hidden" binding:"required"`
}

// SubmitRequest finishes the exam. Answers typed but not yet saved are
// merged before grading.
type SubmitRequest struct {
	Answers map[string]string `json:"answers" binding:"omitempty,max=500,dive,keys,max=120,endkeys,max=10000"`
}
