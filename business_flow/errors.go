// Package businessflow contains the business logic for the device profile service.
package businessflow

import (
	"errors"
	"fmt"

	"github.com/Ashraf-Taha/zenrows-deviceprofiles/repository"
	"github.com/Ashraf-Taha/zenrows-deviceprofiles/utils"
)

// Business flow error constants
var (
	// Profile-related errors. Absent and invisible rows are deliberately
	// indistinguishable so listings never leak existence across tenants.
	ErrProfileNotFound  = errors.New("profile not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrVersionNotFound  = errors.New("version not found")

	// Optimistic concurrency errors
	ErrVersionMismatch = errors.New("profile version mismatch")
	ErrVersionRequired = errors.New("expected version is required")

	// Uniqueness errors
	ErrNameConflict = errors.New("profile name already in use")

	// Input errors
	ErrNoUpdates         = errors.New("at least one field must be provided for update")
	ErrInvalidCountry    = errors.New("country is not on the allow-list")
	ErrInvalidDeviceType = errors.New("unknown device type")

	// Credential errors
	ErrAPIKeyMissing = errors.New("api key is missing")
	ErrAPIKeyInvalid = errors.New("api key is invalid")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsNotFound reports whether err belongs to the NotFound taxonomy:
// the resource is absent or simply invisible to the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrVersionNotFound)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsPreconditionFailed reports a version mismatch or lost update race
func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrVersionMismatch) ||
		errors.Is(err, repository.ErrVersionMismatch)
}

// IsConflict reports a uniqueness violation
func IsConflict(err error) bool {
	return errors.Is(err, ErrNameConflict) ||
		errors.Is(err, repository.ErrDuplicateName)
}

// IsInvalidInput reports malformed fields, cursors, or limits
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrVersionRequired) ||
		errors.Is(err, ErrNoUpdates) ||
		errors.Is(err, ErrInvalidCountry) ||
		errors.Is(err, ErrInvalidDeviceType) ||
		errors.Is(err, utils.ErrInvalidCursor) ||
		errors.Is(err, utils.ErrInvalidLimit)
}

// IsUnauthorized reports a missing or invalid credential
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrAPIKeyMissing) ||
		errors.Is(err, ErrAPIKeyInvalid)
}
