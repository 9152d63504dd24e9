package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrClassInUse         = errors.New("class still has students")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries field-level messages for rejected input.
// Uniqueness conflicts are reported the same way.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// fieldConflict builds the validation error returned for a unique-key collision.
func fieldConflict(field, message string) error {
	return NewValidationError(errors.New(message), FieldError{Field: field, Error: message})
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FieldMap flattens the field errors, keeping the first message per field.
func (e *ValidationError) FieldMap() map[string]string {
	fields := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := fields[f.Field]; !ok {
			fields[f.Field] = f.Error
		}
	}
	return fields
}

// FieldErrors returns the field messages of err when it is a validation
// error, nil otherwise.
func FieldErrors(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.FieldMap()
	}
	return nil
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// fromValidator converts validator errors into a ValidationError with translated messages.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return &ValidationError{Err: errors.New("validation failed"), Fields: fields}
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// drivers that do not translate errors
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// createOrReread runs create in a nested transaction, a savepoint when tx is
// already one. When create loses a unique index race the savepoint is rolled
// back and reread loads the winning row through tx, which stays usable.
func createOrReread(tx *gorm.DB, create, reread func(*gorm.DB) error) error {
	err := tx.Transaction(create)
	if err != nil && isDuplicate(err) {
		return reread(tx)
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
