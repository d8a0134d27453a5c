// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used by main-loop operations
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRxTimeoutGuard sets the margin added to the previous inter-byte delta
// before a receive frame is considered complete
func WithRxTimeoutGuard(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.rxGuard = d
		}
	}
}

type channelKind uint8

const (
	channelUnused channelKind = iota
	channelTx
	channelRx
)

type channelRef struct {
	kind channelKind
	port int
}

type port struct {
	index int
	cfg   PortConfig
	line  Line

	dir     atomic.Int32 // Direction
	enabled atomic.Bool

	tx    transmitter
	rx    receiver
	stats counters
}

func (p *port) receiving() bool {
	return Direction(p.dir.Load()) == DirectionInput && p.enabled.Load()
}

// Engine is the transceiver context: every port of a board, the shared
// transmit timing and the statistics. Create one with New.
type Engine struct {
	board    Board
	hw       Hardware
	log      *slog.Logger
	rxGuard  time.Duration
	ports    []port
	channels []channelRef

	request timingRequest // main loop only
	timing  atomic.Pointer[Timing]

	uptime    atomic.Uint32
	lastRxEnd atomic.Int64 // Clock.Now of the last completed RDM receive
}

// New creates an engine for board on hw. Every port starts as a disabled
// input in delta style, with the shared timing at its defaults.
func New(board Board, hw Hardware, opts ...Option) (*Engine, error) {
	if err := board.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		board:   board,
		hw:      hw,
		log:     slog.New(slog.DiscardHandler),
		rxGuard: DefaultRxTimeoutGuard,
		ports:   make([]port, len(board.Ports)),
		request: timingRequest{
			breakTime: BreakTimeTypical,
			mabTime:   DefaultMabTime,
			period:    DefaultPeriodTime,
			slots:     MaxSlots,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	maxChannel := 0
	for _, pc := range board.Ports {
		maxChannel = max(maxChannel, pc.TxChannel, pc.RxChannel)
	}
	e.channels = make([]channelRef, maxChannel+1)

	for i := range e.ports {
		p := &e.ports[i]
		p.index = i
		p.cfg = board.Ports[i]
		p.line = hw.Line(i)
		p.dir.Store(int32(DirectionInput))
		p.tx.slots.Store(MaxSlots)
		p.tx.length = MaxSlots
		p.tx.active[0] = StartCode
		p.tx.pending[0] = StartCode

		e.channels[p.cfg.TxChannel] = channelRef{kind: channelTx, port: i}
		e.channels[p.cfg.RxChannel] = channelRef{kind: channelRx, port: i}
	}

	e.recomputeTiming()
	hw.Bind(e)

	for i := range e.ports {
		p := &e.ports[i]
		p.line.EnableReceive(false)
		p.line.SetDirection(DirectionInput)
	}

	e.log.Info("engine ready", "board", board.Name, "ports", len(e.ports))
	return e, nil
}

// port returns the port at index i. An index outside the board is a
// configuration bug, not a runtime condition.
func (e *Engine) port(i int) *port {
	if i < 0 || i >= len(e.ports) {
		panic(fmt.Sprintf("dmx: port index %d out of range [0, %d)", i, len(e.ports)))
	}
	return &e.ports[i]
}

// Board returns the configuration table the engine was built from
func (e *Engine) Board() Board {
	return e.board
}

// Ports returns the number of ports
func (e *Engine) Ports() int {
	return len(e.ports)
}

// PortDirection returns the current direction of a port
func (e *Engine) PortDirection(i int) Direction {
	return Direction(e.port(i).dir.Load())
}

// PortEnabled reports whether data flow is enabled on a port
func (e *Engine) PortEnabled(i int) bool {
	return e.port(i).enabled.Load()
}

// TxState returns the transmit framer state of a port
func (e *Engine) TxState(i int) TxState {
	return TxState(e.port(i).tx.state.Load())
}

// RxState returns the receive state machine state of a port
func (e *Engine) RxState(i int) RxState {
	return RxState(e.port(i).rx.state.Load())
}

// HandleTimer is the compare-channel interrupt. Transmit channels advance the
// framer; receive channels signal the inter-byte timeout.
func (e *Engine) HandleTimer(ch int) {
	if ch < 0 || ch >= len(e.channels) {
		return
	}
	ref := e.channels[ch]
	switch ref.kind {
	case channelTx:
		e.handleTxTimer(&e.ports[ref.port])
	case channelRx:
		e.handleRxTimeout(&e.ports[ref.port])
	}
}
