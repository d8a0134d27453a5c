// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package serialport binds the dmx engine to host serial devices, typically
// USB RS-485 adapters.
//
// A host UART offers no compare timers, DMA or framing-error interrupts, so
// the binding emulates them: compares are time.AfterFunc timers, a DMA burst
// is a blocking write on its own goroutine, and a break is recovered from the
// 0x00 the tty reports for it or, failing that, from an idle line. Every
// engine handler runs on a single dispatcher goroutine.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"go.bug.st/serial"
)

// BaudRate is the DMX512 line rate
const BaudRate = 250000

// Defaults for Options. USB adapters hand over received bytes in bursts up
// to their latency timer apart (16 ms on FTDI parts), so the idle gap must
// stay above that.
const (
	DefaultIdleGap     = 25 * time.Millisecond
	DefaultReadTimeout = time.Millisecond
)

var ErrNoPorts = errors.New("no serial ports found")

// Options tunes the host binding
type Options struct {
	// IdleGap is the silence after which the next byte is taken to follow a
	// break. It is the fallback when no break marker is seen. Give the
	// engine the same receive guard so bursts do not split frames.
	IdleGap time.Duration
	// ReadTimeout bounds a single read so idle gaps can be observed.
	ReadTimeout time.Duration
	// BreakAsNull treats the 0x00 byte a raw-mode tty reports for a received
	// break as the break itself. Disable it for drivers that drop breaks.
	BreakAsNull bool
	Logger      *slog.Logger
}

// DefaultOptions returns the recommended options for USB RS-485 adapters
func DefaultOptions() Options {
	return Options{
		IdleGap:     DefaultIdleGap,
		ReadTimeout: DefaultReadTimeout,
		BreakAsNull: true,
	}
}

type event func(dmx.Interrupts)

// Hardware is the host binding for a board whose port names are serial
// device paths
type Hardware struct {
	opts  Options
	log   *slog.Logger
	start time.Time
	lines []*line

	events   chan event
	done     chan struct{}
	closeOne sync.Once
	wg       sync.WaitGroup

	mu     sync.Mutex
	timers map[int]*time.Timer
	gen    map[int]uint64
}

// Open opens every port of board at 250000 baud, 8N2
func Open(board dmx.Board, opts Options) (*Hardware, error) {
	if len(board.Ports) == 0 {
		return nil, ErrNoPorts
	}
	h := newHardware(opts)

	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	for i, pc := range board.Ports {
		port, err := serial.Open(pc.Name, mode)
		if err != nil {
			h.closePorts()
			return nil, fmt.Errorf("failed to open serial port %s: %w", pc.Name, err)
		}
		if err := port.SetReadTimeout(h.opts.ReadTimeout); err != nil {
			port.Close()
			h.closePorts()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", pc.Name, err)
		}
		h.lines = append(h.lines, &line{hw: h, index: i, name: pc.Name, port: port})
	}
	h.log.Debug("serial ports open", "board", board.Name, "ports", len(h.lines))
	return h, nil
}

func newHardware(opts Options) *Hardware {
	if opts.IdleGap <= 0 {
		opts.IdleGap = DefaultIdleGap
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	h := &Hardware{
		opts:   opts,
		log:    opts.Logger,
		start:  time.Now(),
		events: make(chan event, 256),
		done:   make(chan struct{}),
		timers: make(map[int]*time.Timer),
		gen:    make(map[int]uint64),
	}
	if h.log == nil {
		h.log = slog.New(slog.DiscardHandler)
	}
	return h
}

// Now returns the time since Open
func (h *Hardware) Now() time.Duration {
	return time.Since(h.start)
}

// Delay sleeps for long delays and spins for short ones
func (h *Hardware) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

// Bind starts the dispatcher, the readers and the one-second tick
func (h *Hardware) Bind(handlers dmx.Interrupts) {
	h.wg.Add(2 + len(h.lines))
	go h.dispatch(handlers)
	go h.tick()
	for _, l := range h.lines {
		go l.read()
	}
}

func (h *Hardware) dispatch(handlers dmx.Interrupts) {
	defer h.wg.Done()
	for {
		select {
		case ev := <-h.events:
			ev(handlers)
		case <-h.done:
			return
		}
	}
}

func (h *Hardware) tick() {
	defer h.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.raise(func(i dmx.Interrupts) { i.HandleTick() })
		case <-h.done:
			return
		}
	}
}

// raise queues an event for the dispatcher
func (h *Hardware) raise(ev event) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// Line returns the line of a port
func (h *Hardware) Line(port int) dmx.Line {
	return h.lines[port]
}

// Arm schedules a compare on ch. A compare that fires after being replaced
// or disarmed is dropped by the dispatcher.
func (h *Hardware) Arm(ch int, after time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t := h.timers[ch]; t != nil {
		t.Stop()
	}
	h.gen[ch]++
	gen := h.gen[ch]
	h.timers[ch] = time.AfterFunc(after, func() {
		h.raise(func(i dmx.Interrupts) {
			if h.current(ch, gen) {
				i.HandleTimer(ch)
			}
		})
	})
}

// Disarm cancels a pending compare on ch
func (h *Hardware) Disarm(ch int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t := h.timers[ch]; t != nil {
		t.Stop()
		delete(h.timers, ch)
	}
	h.gen[ch]++
}

func (h *Hardware) current(ch int, gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gen[ch] == gen
}

// Close stops the binding and closes every port
func (h *Hardware) Close() error {
	h.closeOne.Do(func() {
		close(h.done)
		h.mu.Lock()
		for _, t := range h.timers {
			t.Stop()
		}
		h.mu.Unlock()
	})
	err := h.closePorts()
	h.wg.Wait()
	return err
}

func (h *Hardware) closePorts() error {
	var errs []error
	for _, l := range h.lines {
		if err := l.close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
		}
	}
	return errors.Join(errs...)
}

func (h *Hardware) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// isClosedErr reports errors returned by reads on a port closed under them
func isClosedErr(err error) bool {
	var perr *serial.PortError
	if errors.As(err, &perr) && perr.Code() == serial.PortClosed {
		return true
	}
	return errors.Is(err, io.EOF)
}
