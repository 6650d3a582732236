package utils

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool, len(slice))
	result := make([]T, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

func NilIfEmpty[T comparable](value T) *T {
	var zero T
	if value == zero {
		return nil
	}
	return &value
}

// DateOnly truncates t to midnight in t's location. Used for the back-date
// guard, which compares calendar days, not instants.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ProcessValidationErrors flattens validator errors into field => message,
// keeping the response shape the frontend already understands.
func ProcessValidationErrors(err error) map[string]string {
	errorsMap := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errorsMap["error"] = err.Error()
		return errorsMap
	}
	for _, fieldErr := range validationErrors {
		fieldName := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			errorsMap[fieldName] = fieldName + " is required"
		default:
			errorsMap[fieldName] = fieldName + " is invalid"
		}
	}
	return errorsMap
}
