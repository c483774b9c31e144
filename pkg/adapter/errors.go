package adapter

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by operations that need an open connection.
var ErrNotConnected = errors.New("database connection not established")

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown warehouse %q\nAvailable warehouses: %v\nHint: pass --warehouse with one of the available names", e.Type, e.Available)
}
