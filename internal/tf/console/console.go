// Package console delivers raw TF2 console output lines to a receiver,
// normally the world dispatcher.
package console

import (
	"context"
	"errors"
)

// Receiver handles incoming raw console lines.
type Receiver interface {
	AddConsoleOutputLine(line string)
}

// Source is responsible for setting up and sending console lines to a
// Receiver.
type Source interface {
	Start(ctx context.Context, receiver Receiver)
	Open() error
	Close(ctx context.Context) error
}

var (
	ErrOpen  = errors.New("failed to open console source")
	ErrClose = errors.New("failed to close console source")
)
