package daraja

import "fmt"

// ValidationError reports input the gateway would reject outright
// (bad phone format, non-positive amount). Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "daraja: invalid " + e.Field + ": " + e.Reason
}

// AuthError reports a failed credential exchange against the token endpoint.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("daraja: credential exchange failed (status %d)", e.Status)
}

// CircuitOpenError is returned when the breaker rejects a call without
// touching the network.
type CircuitOpenError struct{}

func (e *CircuitOpenError) Error() string {
	return "daraja: circuit open, request rejected"
}

// HTTPError reports a non-2xx gateway response after retries are exhausted.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("daraja: gateway returned %d: %s", e.Status, e.Body)
}
