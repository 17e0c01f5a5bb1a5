package loader

import (
	"context"
	"sync"
	"time"
)

// Rotator cycles through a fixed message list on a timer. It has no effect on
// orchestration and can be started and stopped freely.
type Rotator struct {
	messages []Message
	interval time.Duration

	mu    sync.Mutex
	index int
}

func NewRotator(messages []Message, interval time.Duration) *Rotator {
	return &Rotator{messages: messages, interval: interval}
}

// NewPhaseRotator returns a rotator for phase, or nil for PhaseNone.
func NewPhaseRotator(phase Phase) *Rotator {
	messages, interval := phase.Messages()
	if len(messages) == 0 {
		return nil
	}
	return NewRotator(messages, interval)
}

// Current returns the message at the current index.
func (r *Rotator) Current() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[r.index]
}

func (r *Rotator) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// Advance moves to the next message, wrapping to the first after the last.
func (r *Rotator) Advance() Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = (r.index + 1) % len(r.messages)
	return r.messages[r.index]
}

// Run advances once per interval and passes each new message to onChange until ctx
// is done.
func (r *Rotator) Run(ctx context.Context, onChange func(Message)) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := r.Advance()
			if onChange != nil {
				onChange(msg)
			}
		}
	}
}
