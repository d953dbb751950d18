// Package tasks launches work pinned to an execution unit and provides the
// binary signal used to hand completion back to the caller.
package tasks

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Unit identifies an execution unit (a CPU core).
type Unit int

var ErrInvalidUnit = errors.New("execution unit out of range")

// Spawner starts fn on a dedicated execution unit.
type Spawner interface {
	SpawnPinned(name string, fn func(), unit Unit, stackHint, priority int) (*Handle, error)
}

// Handle refers to a launched task.
type Handle struct {
	ID        uuid.UUID
	Name      string
	Unit      Unit
	StackHint int
	Priority  int
	Pinned    bool
	done      chan struct{}
}

// Done is closed once the task has returned or terminated itself.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Launcher runs each task on its own goroutine locked to an OS thread, and
// pins that thread to the requested CPU where the platform allows it.
type Launcher struct {
	units int
}

func NewLauncher() *Launcher {
	return &Launcher{units: runtime.NumCPU()}
}

func (l *Launcher) Units() int {
	return l.units
}

func (l *Launcher) SpawnPinned(name string, fn func(), unit Unit, stackHint, priority int) (*Handle, error) {
	if fn == nil {
		return nil, errors.New("nil task entry point")
	}
	if int(unit) < 0 || int(unit) >= l.units {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrInvalidUnit, unit, l.units)
	}
	h := &Handle{
		ID:        uuid.New(),
		Name:      name,
		Unit:      unit,
		StackHint: stackHint,
		Priority:  priority,
		done:      make(chan struct{}),
	}
	started := make(chan struct{})
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("op", "tasks/launcher").Str("task", name).Msgf("PANIC: %v\n%s", r, debug.Stack())
			}
		}()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := pinCurrentThread(int(unit)); err != nil {
			log.Debug().Str("op", "tasks/launcher").Str("task", name).Err(err).Msg("cpu affinity not applied")
		} else {
			h.Pinned = true
		}
		close(started)
		fn()
	}()
	<-started
	log.Debug().Str("op", "tasks/launcher").Str("task", name).Str("id", h.ID.String()).Int("unit", int(unit)).Bool("pinned", h.Pinned).Msg("task started")
	return h, nil
}

// TerminateSelf ends the calling task. Deferred calls still run.
func TerminateSelf() {
	runtime.Goexit()
}
