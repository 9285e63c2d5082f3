package model

import (
	"fmt"
	"regexp"
	"time"
)

// Field limits for user-submitted text.
const (
	MinPasswordLen      = 6
	MaxFeedbackFieldLen = 200
	MaxFeedbackMsgLen   = 4 * 1024
	MaxContentTitleLen  = 200
	MaxContentBodyLen   = 16 * 1024
)

var gmailPattern = regexp.MustCompile(`^[\w.-]+@gmail\.com$`)

// ValidateRegistration checks the email and password rules for new accounts.
func ValidateRegistration(email, password string) error {
	if !gmailPattern.MatchString(email) {
		return fmt.Errorf("email must be @gmail.com")
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// ValidateFeedback checks rating bounds and text lengths.
func ValidateFeedback(f Feedback) error {
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be 1-5")
	}
	if len(f.Name) > MaxFeedbackFieldLen || len(f.Country) > MaxFeedbackFieldLen {
		return fmt.Errorf("name and country must be at most %d characters", MaxFeedbackFieldLen)
	}
	if len(f.Message) > MaxFeedbackMsgLen {
		return fmt.Errorf("message exceeds maximum length of %d bytes", MaxFeedbackMsgLen)
	}
	return nil
}

// APIError is the error response envelope. Success bodies are written bare
// so web clients can read fields such as token at the top level.
//
// Detail repeats Error.Message for clients that only look at "detail".
type APIError struct {
	Detail string       `json:"detail"`
	Error  ErrorDetail  `json:"error"`
	Meta   ResponseMeta `json:"meta"`
}

// NewAPIError builds an error envelope stamped with the current time.
func NewAPIError(requestID, code, message string, details any) APIError {
	return APIError{
		Detail: message,
		Error:  ErrorDetail{Code: code, Message: message, Details: details},
		Meta:   ResponseMeta{RequestID: requestID, Timestamp: time.Now().UTC()},
	}
}

// ResponseMeta contains request metadata included in every error response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInvalidVitals = "INVALID_VITALS"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// MessageResponse is the body of endpoints that only acknowledge an action.
type MessageResponse struct {
	Message string `json:"message"`
	ID      *int64 `json:"id,omitempty"`
}

// TokenResponse is returned by /register, /login and /admin/login.
type TokenResponse struct {
	Message  string `json:"message"`
	Token    string `json:"token"`
	AdminID  int64  `json:"admin_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// StressRequest is the JSON body of POST /stress.
type StressRequest struct {
	User  string  `json:"user"`
	BP    string  `json:"bp"`
	Sleep float64 `json:"sleep"`
	Resp  float64 `json:"resp"`
	Heart float64 `json:"heart"`
}

// StressResponse is the response for POST /stress. Timestamp is nil only in
// the legacy degraded error response.
type StressResponse struct {
	ID          *int64     `json:"id,omitempty"`
	StressLevel string     `json:"stress_level"`
	Advice      string     `json:"advice"`
	Timestamp   *time.Time `json:"timestamp"`
	BPStage     string     `json:"bp_stage,omitempty"`
	Systolic    *int       `json:"systolic,omitempty"`
	Diastolic   *int       `json:"diastolic,omitempty"`
}

// Analytics is the response for GET /admin/analytics/users.
type Analytics struct {
	Users         int64 `json:"users"`
	Feedbacks     int64 `json:"feedbacks"`
	StressEntries int64 `json:"stress_entries"`
}

// TablesResponse is the response for GET /tables.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Uptime   int64  `json:"uptime_seconds"`
}
