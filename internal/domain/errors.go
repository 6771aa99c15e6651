package domain

import (
	"errors"
	"fmt"
)

// FailureKind: вид сбоя при обновлении каталога
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureNetwork     FailureKind = "network"
	FailureDecode      FailureKind = "decode"
	FailurePersistence FailureKind = "persistence"
	FailureUnreachable FailureKind = "unreachable"
)

// Сентинел-ошибки для проверки через errors.Is
var (
	ErrNetwork     = errors.New("network failure")
	ErrDecode      = errors.New("decode failure")
	ErrPersistence = errors.New("persistence failure")
	ErrUnreachable = errors.New("network unreachable")
)

func (k FailureKind) sentinel() error {
	switch k {
	case FailureNetwork:
		return ErrNetwork
	case FailureDecode:
		return ErrDecode
	case FailurePersistence:
		return ErrPersistence
	case FailureUnreachable:
		return ErrUnreachable
	default:
		return nil
	}
}

// CatalogError описывает сбой конкретной операции с указанием его вида
type CatalogError struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *CatalogError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.sentinel(), e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать ошибку с сентинелом её вида
func (e *CatalogError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func NewNetworkError(op string, err error) error {
	return &CatalogError{Kind: FailureNetwork, Op: op, Err: err}
}

func NewDecodeError(op string, err error) error {
	return &CatalogError{Kind: FailureDecode, Op: op, Err: err}
}

func NewPersistenceError(op string, err error) error {
	return &CatalogError{Kind: FailurePersistence, Op: op, Err: err}
}

func NewUnreachableError(op string) error {
	return &CatalogError{Kind: FailureUnreachable, Op: op}
}

// KindOf возвращает вид сбоя; для ошибок вне таксономии: FailureNetwork.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var ce *CatalogError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return FailureNetwork
}
