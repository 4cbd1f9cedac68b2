package rcon

import (
	"context"
	"log/slog"
	"time"
)

// The commands whose console output drives the world state machine. Their
// output is identical whether it arrives via console.log or rcon.
const pollCommands = "status;tf_lobby_debug;ping"

// Receiver accepts chunks of raw console output.
type Receiver interface {
	AddConsoleOutputChunk(chunk string)
}

// Poller periodically replays the state commands over rcon and feeds the
// responses into a receiver. It complements the console.log tail, which only
// sees output the user triggers themselves.
type Poller struct {
	conn     Connection
	interval time.Duration
}

func NewPoller(conn Connection, interval time.Duration) *Poller {
	return &Poller{conn: conn, interval: interval}
}

func (p *Poller) Start(ctx context.Context, receiver Receiver) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			response, errExec := p.conn.Exec(ctx, pollCommands, true)
			if errExec != nil {
				// The game not running yet is the common case.
				slog.Debug("Failed to poll rcon", slog.String("error", errExec.Error()))

				continue
			}

			receiver.AddConsoleOutputChunk(response + "\n")
		}
	}
}
