// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package serialport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"go.bug.st/serial"
)

type line struct {
	hw    *Hardware
	index int
	name  string
	port  serial.Port

	receive   atomic.Bool
	busy      atomic.Bool
	breakDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// SetDirection drives RTS, which RS-485 adapters wire to the driver enable
func (l *line) SetDirection(dir dmx.Direction) {
	if err := l.port.SetRTS(dir == dmx.DirectionOutput); err != nil {
		l.hw.log.Warn("failed to set direction", "port", l.name, "error", err)
	}
}

func (l *line) EnableReceive(on bool) {
	if on {
		if err := l.port.ResetInputBuffer(); err != nil {
			l.hw.log.Warn("failed to flush input", "port", l.name, "error", err)
		}
	}
	l.receive.Store(on)
}

// DriveLow starts a timed break. Host UARTs cannot hold the line low
// indefinitely, so the break length is fixed here and Release waits for it.
func (l *line) DriveLow(hold time.Duration) {
	l.busy.Store(true)
	done := make(chan struct{})
	l.breakDone = done
	go func() {
		defer close(done)
		if err := l.port.Break(hold); err != nil {
			l.hw.log.Warn("break failed", "port", l.name, "error", err)
		}
	}()
}

func (l *line) Release() {
	if l.breakDone != nil {
		<-l.breakDone
		l.breakDone = nil
	}
	l.busy.Store(false)
}

// StartDMA writes data on a goroutine and reports completion once the
// output buffer has drained
func (l *line) StartDMA(data []byte) {
	buf := append([]byte(nil), data...)
	l.busy.Store(true)
	go func() {
		l.write(buf)
		l.busy.Store(false)
		l.hw.raise(func(i dmx.Interrupts) { i.HandleDMAComplete(l.index) })
	}()
}

func (l *line) Write(data []byte) {
	l.busy.Store(true)
	l.write(data)
	l.busy.Store(false)
}

func (l *line) write(data []byte) {
	if _, err := l.port.Write(data); err != nil {
		l.hw.log.Warn("write failed", "port", l.name, "error", err)
		return
	}
	if err := l.port.Drain(); err != nil {
		l.hw.log.Warn("drain failed", "port", l.name, "error", err)
	}
}

func (l *line) TransmitComplete() bool {
	return !l.busy.Load()
}

// read delivers received bytes to the engine. Breaks come from the 0x00
// marker the tty reports for them, or from an idle gap when no marker is
// seen.
func (l *line) read() {
	defer l.hw.wg.Done()
	buf := make([]byte, 1024)
	d := newBreakDetector(l.hw.opts.BreakAsNull)
	idle := true
	last := time.Now()

	for !l.hw.closed() {
		n, err := l.port.Read(buf)
		if err != nil {
			if l.hw.closed() || isClosedErr(err) {
				return
			}
			l.hw.log.Warn("read failed", "port", l.name, "error", err)
			time.Sleep(l.hw.opts.ReadTimeout)
			continue
		}

		now := time.Now()
		if n == 0 {
			if !idle && now.Sub(last) >= l.hw.opts.IdleGap {
				idle = true
				if tail := d.flush(); tail != nil && l.receive.Load() {
					l.deliver([]chunk{{data: tail}})
				}
			}
			continue
		}

		gap := idle || now.Sub(last) >= l.hw.opts.IdleGap
		last = now
		idle = false
		if !l.receive.Load() {
			d.discard()
			continue
		}
		if chunks := d.feed(buf[:n], gap); len(chunks) > 0 {
			l.deliver(chunks)
		}
	}
}

func (l *line) deliver(chunks []chunk) {
	l.hw.raise(func(i dmx.Interrupts) {
		for _, c := range chunks {
			if c.brk {
				i.HandleFramingError(l.index)
			}
			for _, b := range c.data {
				i.HandleByte(l.index, b)
			}
		}
	})
}

func (l *line) close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.port.Close()
	})
	return l.closeErr
}
