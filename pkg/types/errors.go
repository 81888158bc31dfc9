package types

import "fmt"

// LookupError wraps a failed address lookup with the address that was queried.
type LookupError struct {
	Address string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %q: %v", e.Address, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
