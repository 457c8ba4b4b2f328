package app

import "fmt"

// DomainError is a client-visible failure. Code is a stable machine-readable
// identifier (VALIDATION_ERROR, NOT_FOUND, CONFLICT, ...) and Details carries
// structured context such as per-field validation messages or the current
// combat session version on a save conflict.
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
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
