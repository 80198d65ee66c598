package helper

import "fmt"

// NewError wraps an error with the action that failed. The cause stays
// matchable with errors.Is/errors.As.
func NewError(action string, err error) error {
	return fmt.Errorf("error in %v: %w", action, err)
}
