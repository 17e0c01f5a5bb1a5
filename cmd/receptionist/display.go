package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"property-receptionist/internal/loader"
	"property-receptionist/internal/orchestrator"
)

// display renders orchestrator state as terminal lines and rotates the loading
// messages for the current phase.
type display struct {
	out io.Writer

	mu          sync.Mutex
	stage       orchestrator.Stage
	progress    int
	preliminary string
	phase       loader.Phase
	stopRotator context.CancelFunc
	rotatorDone chan struct{}
}

func newDisplay(out io.Writer) *display {
	return &display{out: out}
}

func (d *display) onState(s orchestrator.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.Stage != d.stage {
		d.stage = s.Stage
		fmt.Fprintf(d.out, "[%s]\n", s.Stage)
	}
	if s.Progress != d.progress {
		d.progress = s.Progress
		fmt.Fprintf(d.out, "  %3d%%\n", s.Progress)
	}
	if s.Preliminary != "" && s.Preliminary != d.preliminary {
		d.preliminary = s.Preliminary
		fmt.Fprintf(d.out, "  %s\n", s.Preliminary)
	}

	if phase := loader.PhaseFor(s.Stage); phase != d.phase {
		d.switchPhaseLocked(phase)
	}
}

func (d *display) switchPhaseLocked(phase loader.Phase) {
	d.stopRotatorLocked()
	d.phase = phase

	r := loader.NewPhaseRotator(phase)
	if r == nil {
		return
	}
	fmt.Fprintf(d.out, "  · %s\n", r.Current().TitleKey)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.stopRotator = cancel
	d.rotatorDone = done
	go func() {
		defer close(done)
		r.Run(ctx, func(m loader.Message) {
			d.mu.Lock()
			defer d.mu.Unlock()
			if ctx.Err() == nil {
				fmt.Fprintf(d.out, "  · %s\n", m.TitleKey)
			}
		})
	}()
}

// stopRotatorLocked cancels the rotator without waiting: its callback needs d.mu.
func (d *display) stopRotatorLocked() {
	if d.stopRotator != nil {
		d.stopRotator()
		d.stopRotator = nil
	}
}

func (d *display) close() {
	d.mu.Lock()
	d.stopRotatorLocked()
	done := d.rotatorDone
	d.rotatorDone = nil
	d.mu.Unlock()

	if done != nil {
		<-done
	}
}
