package console

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/nxadm/tail"
)

func NewLocal(filePath string) *Local {
	return &Local{
		stopChan: make(chan any),
		filePath: filePath,
	}
}

// Local handles "tail"-ing the console.log file that TF2 produces when
// launched with -condebug.
type Local struct {
	tail     *tail.Tail
	stopChan chan any
	filePath string
}

func (l *Local) Open() error {
	if l.tail != nil && l.tail.Filename == l.filePath {
		return nil
	}

	tailConfig := tail.Config{
		// Start at the end of the file, only watch for new lines.
		Location: &tail.SeekInfo{
			Offset: 0,
			Whence: io.SeekEnd,
		},
		Logger:    tail.DiscardingLogger,
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
	}

	tailFile, errTail := tail.TailFile(l.filePath, tailConfig)
	if errTail != nil {
		return errors.Join(errTail, ErrOpen)
	}

	if l.tail != nil {
		l.stopChan <- true
	}

	l.tail = tailFile

	return nil
}

func (l *Local) Close(_ context.Context) error {
	if l.tail == nil || l.stopChan == nil {
		return nil
	}

	l.stopChan <- true

	return nil
}

// Start reads incoming lines until the context is cancelled or Close is
// called, forwarding every line to the receiver.
func (l *Local) Start(ctx context.Context, receiver Receiver) {
	stop := func() {
		if l.tail == nil {
			return
		}
		if errStop := l.tail.Stop(); errStop != nil {
			slog.Error("Failed to stop tailing console.log cleanly", slog.String("error", errStop.Error()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()

			return
		case msg := <-l.tail.Lines:
			if msg == nil {
				continue
			}

			receiver.AddConsoleOutputLine(msg.Text)
		case <-l.stopChan:
			stop()

			return
		}
	}
}
