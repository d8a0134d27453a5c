// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Thermoquad/lumen/pkg/rdm"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// ============================================================
// Receiver Fuzz Tests
// ============================================================

// TestFuzz_ReceiverRandomLine drives random bytes, breaks and timeouts into
// the receiver and checks it never publishes an impossible frame
func TestFuzz_ReceiverRandomLine(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	e, hw := newInputEngine(t)
	rxCh := e.ports[0].cfg.RxChannel

	for round := 0; round < rounds; round++ {
		events := rng.Intn(600)
		for i := 0; i < events; i++ {
			hw.now += time.Duration(rng.Intn(100)) * time.Microsecond
			switch r := rng.Intn(100); {
			case r < 2:
				e.HandleFramingError(0)
			case r < 3:
				if _, ok := hw.armed[rxCh]; ok {
					hw.fire(t, rxCh)
				}
			default:
				var b byte
				switch rng.Intn(4) {
				case 0:
					b = StartCode
				case 1:
					b = rdm.StartCode
				default:
					b = byte(rng.Intn(256))
				}
				e.HandleByte(0, b)
			}
		}

		if f := e.DMXAvailable(0); f != nil {
			if f.Slots < 1 || f.Slots > MaxSlots {
				t.Fatalf("round %d: published frame with %d slots", round, f.Slots)
			}
			if f.StartCode() != StartCode {
				t.Fatalf("round %d: published frame with start code 0x%02X", round, f.StartCode())
			}
		}
		if msg := e.RDMReceive(0); msg != nil {
			if len(msg) > rdm.FrameMaxSize {
				t.Fatalf("round %d: RDM frame of %d bytes", round, len(msg))
			}
			if msg[0] != rdm.DiscoveryPreamble && !rdm.VerifyChecksum(msg) {
				t.Fatalf("round %d: RDM frame with bad checksum returned", round)
			}
		}
	}
}

// TestFuzz_ReceiverRandomFrames sends well-formed DMX frames of random length
// and checks every one round-trips
func TestFuzz_ReceiverRandomFrames(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	e, hw := newInputEngine(t)

	for round := 0; round < rounds; round++ {
		slots := 1 + rng.Intn(MaxSlots)
		frame := make([]byte, slots+1)
		rng.Read(frame[1:])

		feed(e, hw, frame)
		e.HandleFramingError(0)

		got := e.DMXAvailable(0)
		if got == nil {
			t.Fatalf("round %d: %d-slot frame not received", round, slots)
		}
		if !bytes.Equal(got.SlotData(), frame[1:]) {
			t.Fatalf("round %d: %d-slot frame corrupted", round, slots)
		}
	}
	if stats := e.TotalStatistics(0); stats.DMX.Received != uint32(rounds) {
		t.Errorf("Received = %d, want %d", stats.DMX.Received, rounds)
	}
}

// TestFuzz_ReceiverRandomRDM sends random valid RDM messages
func TestFuzz_ReceiverRandomRDM(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	e, hw := newInputEngine(t)

	for round := 0; round < rounds; round++ {
		data := make([]byte, rng.Intn(rdm.MessageMaxLength-rdm.MessageMinLength+1))
		rng.Read(data)
		msg, err := rdm.Encode(rdm.Header{
			Destination:  rdm.NewUID(uint16(rng.Intn(0x10000)), rng.Uint32()),
			Source:       rdm.NewUID(uint16(rng.Intn(0x10000)), rng.Uint32()),
			CommandClass: rdm.SetCommand,
			ParameterID:  uint16(rng.Intn(0x10000)),
		}, data)
		if err != nil {
			t.Fatalf("round %d: Encode failed: %v", round, err)
		}

		feed(e, hw, msg)

		got := e.RDMReceive(0)
		if !bytes.Equal(got, msg) {
			t.Fatalf("round %d: %d-byte message not received intact", round, len(msg))
		}
	}
}
