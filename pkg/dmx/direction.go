// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

// SetPortDirection switches a port between input and output and enables or
// disables its data flow. Leaving output drains the framer; leaving input
// masks the receiver. An enabled continuous-style output starts transmitting
// at once; an enabled input waits for the next break.
func (e *Engine) SetPortDirection(i int, dir Direction, enableData bool) {
	p := e.port(i)
	cur := Direction(p.dir.Load())
	if cur == dir && p.enabled.Load() == enableData {
		return
	}

	// Handlers check enabled first, so clearing it before the receiver is
	// masked keeps a late interrupt from touching the reset state.
	p.enabled.Store(false)
	if cur != dir || !enableData {
		e.stopData(p, cur)
	}

	if cur != dir {
		p.line.SetDirection(dir)
		p.dir.Store(int32(dir))
	}

	if enableData {
		p.enabled.Store(true)
		e.startData(p, dir)
	}

	e.log.Debug("port direction", "port", i, "direction", dir, "enabled", enableData)
}

func (e *Engine) stopData(p *port, dir Direction) {
	if dir == DirectionOutput {
		e.stopOutput(p)
		return
	}
	p.line.EnableReceive(false)
	e.resetReceiver(p)
}

func (e *Engine) startData(p *port, dir Direction) {
	if dir == DirectionOutput {
		if OutputStyle(p.tx.style.Load()) == StyleContinuous {
			e.StartOutput(p.index)
		}
		return
	}
	e.resetReceiver(p)
	p.line.EnableReceive(true)
}
