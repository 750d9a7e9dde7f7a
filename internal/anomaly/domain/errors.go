package domain

// CodeDetectionFailed wraps unexpected failures inside a detection run.
const CodeDetectionFailed = "DETECTION_FAILED"

// Error carries a stable code plus a free-form reason for diagnostics.
type Error struct {
	Code    string
	Message string
	Reason  string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// WrapFailure packages an unexpected lower-layer failure under a stable code.
func WrapFailure(message string, err error) *Error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &Error{Code: CodeDetectionFailed, Message: message, Reason: reason}
}
