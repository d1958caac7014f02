package ipo2

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is returned by New for unusable inputs.
	ErrPrecondition = errors.New("precondition violated")

	// ErrContractViolation is matched by ContractViolationError.
	ErrContractViolation = errors.New("optimizer contract violated")

	// ErrAlreadyRun is returned when Run is called on a used engine.
	ErrAlreadyRun = errors.New("engine has already run")
)

// ContractViolationError reports optimizer output the engine cannot accept.
type ContractViolationError struct {
	Hook   string
	Detail string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("optimizer contract violated in %s: %s", e.Hook, e.Detail)
}

// Is lets errors.Is match ErrContractViolation.
func (e *ContractViolationError) Is(target error) bool {
	return target == ErrContractViolation
}

func violation(hook, format string, args ...any) error {
	return &ContractViolationError{Hook: hook, Detail: fmt.Sprintf(format, args...)}
}
