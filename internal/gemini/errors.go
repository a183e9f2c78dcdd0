package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/tidwall/gjson"
)

// UpstreamCallError reports a Gemini response with a non-200 status.
// Body is kept verbatim for diagnostics.
type UpstreamCallError struct {
	StatusCode int
	Body       string

	// Extracted from Google's {"error":{"code","message","status"}} envelope when present.
	Status  string
	Message string
}

// NewUpstreamCallError builds an UpstreamCallError from a raw response.
func NewUpstreamCallError(statusCode int, body []byte) *UpstreamCallError {
	e := &UpstreamCallError{
		StatusCode: statusCode,
		Body:       string(body),
	}
	if gjson.ValidBytes(body) {
		envelope := gjson.GetBytes(body, "error")
		e.Status = envelope.Get("status").String()
		e.Message = envelope.Get("message").String()
	}
	return e
}

func (e *UpstreamCallError) Error() string {
	return fmt.Sprintf("Gemini API error (HTTP %d): %s", e.StatusCode, e.Body)
}

// IsTimeout reports whether err is an upstream call that ran out of time.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
