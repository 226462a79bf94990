package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// ValidationError ошибка входных данных
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DuplicateError нарушение уникальности при сохранении
type DuplicateError struct {
	Fields []string
}

func (e *DuplicateError) Error() string {
	if len(e.Fields) == 0 {
		return "запись с такими значениями уже существует"
	}
	return fmt.Sprintf("значение уже используется: %s", strings.Join(e.Fields, ", "))
}

// MappingNotFoundError маркетплейс не нашел карточки для переданных SKU
type MappingNotFoundError struct {
	SKUs []string
	Err  error
}

func (e *MappingNotFoundError) Error() string {
	return fmt.Sprintf("mapping not found for market SKU: %s", strings.Join(e.SKUs, ", "))
}

func (e *MappingNotFoundError) Unwrap() error {
	return e.Err
}
