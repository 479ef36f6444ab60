package app

import "fmt"

// DomainError is a request failure that already knows how it should surface
// on the wire: the HTTP status, a stable machine code, a human message, and
// optional structured details (the highlight palette on a color rejection,
// the verse length on an out-of-range selection). mapError unwraps it at
// the handler edge; anything that is not a DomainError becomes a 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
