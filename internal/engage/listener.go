package engage

import (
	"context"
	"unicode/utf8"

	"github.com/nerrad567/ego-bridge/internal/message"
)

// InvalidUTF8 is stored in place of payloads that are not valid UTF-8.
const InvalidUTF8 = "Invalid UTF-8"

// Logger interface for the listener. Compatible with logging.Logger.
type Logger interface {
	Trace(msg string, args ...any)
}

// Recorder is notified after every update of the cell.
type Recorder interface {
	RecordEngage(value string, valid bool)
}

// Listener writes inbound engage payloads into a Cell.
// It implements transport.Listener.
type Listener struct {
	cell      *Cell
	logger    Logger
	recorders []Recorder
}

// NewListener creates a Listener storing into cell.
func NewListener(cell *Cell, logger Logger) *Listener {
	return &Listener{cell: cell, logger: logger}
}

// AddRecorder registers a recorder. Must be called before the listener
// is subscribed.
func (l *Listener) AddRecorder(r Recorder) {
	l.recorders = append(l.recorders, r)
}

// OnReceive decodes the payload and stores it. Messages without a payload
// leave the cell untouched.
func (l *Listener) OnReceive(_ context.Context, msg *message.Message) {
	if msg == nil || !msg.HasPayload() {
		return
	}

	value, valid := Decode(msg.Payload())
	l.logger.Trace("engage status received",
		"topic", msg.Destination(),
		"value", value,
	)

	l.cell.Store(value)

	for _, r := range l.recorders {
		r.RecordEngage(value, valid)
	}
}

// Decode converts payload to text, substituting InvalidUTF8 when the
// bytes are not valid UTF-8.
func Decode(payload []byte) (string, bool) {
	if !utf8.Valid(payload) {
		return InvalidUTF8, false
	}
	return string(payload), true
}
