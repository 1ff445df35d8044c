package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRecordNotFound   = errors.New("record not found")
	ErrConflict         = errors.New("concurrent update conflict")
)

// StoreError carries the failed operation, its kind (one of the sentinels
// above) and the underlying cause. errors.Is matches both kind and cause.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err and attaches op. Errors that are already a
// *StoreError pass through unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Kind: classify(err), Err: err}
}

func NewError(op string, kind error) error {
	return &StoreError{Op: op, Kind: kind}
}

// Ready reports ErrStoreUnavailable when no connection has been opened.
func Ready(op string) error {
	if DB == nil {
		return NewError(op, ErrStoreUnavailable)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrNotAuthenticated):
		return ErrNotAuthenticated
	default:
		return ErrStoreUnavailable
	}
}
