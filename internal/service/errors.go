package service

import (
	"errors"
	"fmt"
	"strings"

	"meatshop/internal/repository"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = repository.ErrNotFound
	ErrForbidden      = errors.New("access denied")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotEnoughStock = errors.New("not enough stock")
	ErrInvalidState   = errors.New("invalid state")
	ErrEmailTaken     = errors.New("email already registered")

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
)

// InsufficientStockError запрошено больше, чем есть на складе
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %d", e.ProductName, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrNotEnoughStock }

// FieldError ошибка валидации одного поля
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError набор ошибок валидации входных данных
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: msg}}}
}
