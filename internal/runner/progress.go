package runner

import "github.com/ike-ops/expedientes-cli/internal/model"

// Progress is a point-in-time snapshot of a run, emitted after every record
// and once more when the run finishes. Current counts records already folded,
// so the snapshot for record k carries Current=k and stats including k.
type Progress struct {
	Current    int            `json:"current"`
	Total      int            `json:"total"`
	Percentage float64        `json:"percentage"`
	CurrentID  string         `json:"current_id,omitempty"`
	Message    string         `json:"message"`
	Stats      model.RunStats `json:"stats"`
	Final      bool           `json:"final"`
}

// Notifier receives progress snapshots. Implementations must not block; a
// slow consumer must never stall the run loop.
type Notifier interface {
	Notify(p Progress)
}

// NopNotifier discards all progress.
type NopNotifier struct{}

func (NopNotifier) Notify(Progress) {}

// ChannelNotifier publishes progress on a buffered channel, dropping
// snapshots when the consumer lags.
type ChannelNotifier struct {
	ch chan Progress
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelNotifier{ch: make(chan Progress, buffer)}
}

// Notify publishes without blocking. A full buffer drops the snapshot; the
// next one carries the cumulative state anyway.
func (n *ChannelNotifier) Notify(p Progress) {
	select {
	case n.ch <- p:
	default:
	}
}

// C is the consumer side of the notifier.
func (n *ChannelNotifier) C() <-chan Progress {
	return n.ch
}

// Close releases the channel. Call only after the run has finished.
func (n *ChannelNotifier) Close() {
	close(n.ch)
}
