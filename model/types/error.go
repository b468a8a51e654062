package types

import "fmt"

func NewSuiteNotFoundError(name string, available []string) error {
	return fmt.Errorf("test suite %q is not available, registered suites: %v", name, available)
}

func NewInvalidTuningError(name string, err error) error {
	return fmt.Errorf("invalid tuning for suite %q: %w", name, err)
}
