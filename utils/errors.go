package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind adalah taksonomi error inti (lihat APIResponse.Errors).
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindEvidenceUnreadable  ErrorKind = "evidence_unreadable"
	KindOracleUnavailable   ErrorKind = "oracle_unavailable"
	KindConcurrencyConflict ErrorKind = "concurrency_conflict"
	KindNotFound            ErrorKind = "not_found"
	KindForbidden           ErrorKind = "forbidden"
	KindInternal            ErrorKind = "internal"
)

// AppError membawa Kind (untuk mapping HTTP status) + pesan untuk user + error teknis.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewError membuat AppError baru. err boleh nil.
func NewError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// ErrConcurrencyConflict dipakai repository saat versi dokumen sudah berubah (lost update).
var ErrConcurrencyConflict = NewError(KindConcurrencyConflict, "data sudah diubah oleh proses lain", nil)

// KindOf mengambil Kind dari rantai error. Error tanpa AppError dianggap internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind mengecek apakah err memiliki Kind tertentu.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf mengembalikan pesan user-facing dari AppError (atau fallback umum).
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Terjadi kesalahan pada server"
}

// StatusOf memetakan Kind ke HTTP status.
func StatusOf(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindEvidenceUnreadable:
		return http.StatusUnprocessableEntity
	case KindOracleUnavailable:
		return http.StatusServiceUnavailable
	case KindConcurrencyConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
