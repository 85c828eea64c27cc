package domain

import "fmt"

// APIError is the single tagged error shape produced at the upstream
// HTTP boundary. Handlers never inspect raw transport errors; they
// branch on Status/Code.
type APIError struct {
	Status  int               `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsAuth reports whether the error means the caller's credentials were
// missing, invalid or expired.
func (e *APIError) IsAuth() bool {
	return e.Status == 401 || e.Status == 403
}

// Error codes produced at the boundary.
const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeForbidden         = "FORBIDDEN"
	CodeUpstreamFailed    = "UPSTREAM_FAILED"
	CodeUpstreamUnreached = "UPSTREAM_UNREACHABLE"
	CodeValidation        = "VALIDATION_ERROR"
)
