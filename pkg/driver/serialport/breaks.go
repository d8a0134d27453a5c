// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package serialport

import (
	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/rdm"
)

// Offset of the message length byte in an RDM frame
const rdmLengthIndex = 2

// chunk is a run of received bytes, preceded by a break when brk is set
type chunk struct {
	brk  bool
	data []byte
}

// breakDetector recovers breaks from the byte stream of a host UART.
//
// A tty in raw mode reports a received break as a 0x00 byte among the data.
// Because 0x00 is also a valid slot value, a 0x00 only counts as a break
// when it is followed by a start code and the frame so far has reached its
// expected length. RDM frames carry their length; DMX frame length is
// learned from the stream, starting from a full universe. A stream that
// overshoots a full universe belongs to a shorter sender, and the position
// of the first candidate in that frame becomes the new length.
//
// With nullMarker unset the detector only passes data through; breaks then
// come from idle gaps alone.
type breakDetector struct {
	nullMarker bool

	synced bool // count is measured from a break
	fresh  bool // a gap break was just taken; its own 0x00 may follow
	held   bool // a trailing 0x00 waits for the next read

	count  int  // bytes since the last break, start code included
	start  byte // first byte after the last break
	rdmLen int  // declared RDM message length, 0 until seen
	first  int  // offset of the first DMX candidate, -1 if none
	expect int  // learned DMX frame length
}

func newBreakDetector(nullMarker bool) *breakDetector {
	d := &breakDetector{nullMarker: nullMarker, expect: dmx.MaxFrameSize}
	d.reset()
	return d
}

func (d *breakDetector) reset() {
	d.count = 0
	d.start = 0
	d.rdmLen = 0
	d.first = -1
}

// discard drops the frame in progress; the next break is found by the first
// marker candidate
func (d *breakDetector) discard() {
	d.reset()
	d.held = false
	d.fresh = false
	d.synced = false
}

// flush returns a held 0x00 as data. It is called once the line went idle,
// when the byte can no longer be followed by a start code.
func (d *breakDetector) flush() []byte {
	if !d.held {
		return nil
	}
	d.held = false
	d.observe(0x00)
	return []byte{0x00}
}

// feed splits one read into chunks. gap reports that the line was idle
// before data.
func (d *breakDetector) feed(data []byte, gap bool) []chunk {
	var out []chunk
	var cur chunk

	if d.held {
		d.held = false
		if gap {
			cur.data = append(cur.data, 0x00)
			d.observe(0x00)
		} else {
			data = append([]byte{0x00}, data...)
		}
	}
	if gap {
		out = appendChunk(out, cur)
		cur = chunk{brk: true}
		d.reset()
		d.synced = true
		d.fresh = d.nullMarker
	}

	for i, b := range data {
		if d.nullMarker && b == 0x00 {
			if i == len(data)-1 {
				if d.fresh || d.couldEnd() {
					d.held = true
					break
				}
			} else if isStartCode(data[i+1]) {
				if d.fresh {
					d.fresh = false
					continue
				}
				if d.marker() {
					out = appendChunk(out, cur)
					cur = chunk{brk: true}
					continue
				}
			}
		}
		d.fresh = false
		cur.data = append(cur.data, b)
		d.observe(b)
	}
	return appendChunk(out, cur)
}

func (d *breakDetector) observe(b byte) {
	if d.count == 0 {
		d.start = b
	}
	if d.start == rdm.StartCode && d.count == rdmLengthIndex {
		d.rdmLen = int(b)
	}
	d.count++
}

// limit is the length the current frame must reach before a marker ends it
func (d *breakDetector) limit() int {
	switch d.start {
	case rdm.StartCode:
		if d.rdmLen == 0 {
			return rdm.FrameMaxSize
		}
		return d.rdmLen + rdm.ChecksumSize
	case rdm.DiscoveryPreamble:
		// Encoded discovery responses never contain 0x00
		return 1
	default:
		return d.expect
	}
}

func (d *breakDetector) couldEnd() bool {
	return !d.synced || (d.count > 0 && d.count >= d.limit())
}

// marker decides whether a 0x00 followed by a start code is a break
func (d *breakDetector) marker() bool {
	if !d.synced {
		d.reset()
		d.synced = true
		return true
	}
	if d.count == 0 {
		// This byte is the start code itself
		return false
	}
	dmxFrame := d.start == dmx.StartCode
	if dmxFrame && d.first < 0 {
		d.first = d.count
	}
	if d.count < d.limit() {
		return false
	}
	if dmxFrame && d.count > dmx.MaxFrameSize {
		d.expect = min(d.first, dmx.MaxFrameSize)
	}
	d.reset()
	return true
}

func isStartCode(b byte) bool {
	return b == dmx.StartCode || b == rdm.StartCode || b == rdm.DiscoveryPreamble
}

func appendChunk(out []chunk, c chunk) []chunk {
	if !c.brk && len(c.data) == 0 {
		return out
	}
	return append(out, c)
}
