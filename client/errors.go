package client

import "fmt"

// AuthError means the server rejected the credentials or token. The
// client clears the stored token and redirects before returning it.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("auth error (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("auth error (%d)", e.Status)
}

// ServerError is any 5xx response that survived the retry.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Status, e.Body)
}

// NetworkError wraps transport failures (DNS, refused, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-5xx, non-auth error response (400, 404, 409, 422).
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

// ValidationError reports client-side validation failures before any
// request is made.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Detail)
	}
	return e.Detail
}

// UploadRejectedError means the evidence file failed the local type or
// size checks and was never sent.
type UploadRejectedError struct {
	Filename string
	Reason   string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("upload rejected (%s): %s", e.Filename, e.Reason)
}
