// Package transport holds what the batch transports share.
package transport

import "errors"

var (
	ErrFrameTooLarge      = errors.New("frame too large")
	ErrUnsupportedMessage = errors.New("unsupported message type")
	ErrClosed             = errors.New("transport is closed")
)

// DefaultMaxBatchSize bounds a single received batch.
const DefaultMaxBatchSize = 1 << 20
