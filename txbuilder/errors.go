package txbuilder

import (
	"errors"
	"fmt"
)

// Builder input failures. Never retried; returned synchronously.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidKey      = errors.New("invalid public key")
	ErrPayloadTooLarge = errors.New("payload exceeds on-chain ceiling")
	ErrSerialization   = errors.New("serialization failed")
)

func invalidKey(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalidKey, field)
}

func serializationErr(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSerialization, name, err)
}
