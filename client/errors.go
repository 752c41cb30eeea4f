package client

import (
	"errors"
	"fmt"
)

// Manager-specific errors.
var (
	ErrClosed           = errors.New("client is closed")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrConnectTimeout   = errors.New("connect timed out")
)

// ConnectionError reports a transport-level failure while dialing the
// server. It wraps the underlying cause, so errors.Is(err, ErrConnectTimeout)
// identifies handshakes that ran out the clock.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
