// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import "sync/atomic"

// Slot is a single-producer/single-consumer frame cell. The producer owns the
// value while the slot is empty and publishes it with Commit; the consumer
// owns it while the slot is ready and hands it back with Clear.
type Slot[T any] struct {
	ready atomic.Bool
	value T
}

// Begin returns the storage for the producer, or nil while a published value
// has not been cleared
func (s *Slot[T]) Begin() *T {
	if s.ready.Load() {
		return nil
	}
	return &s.value
}

// Commit publishes the value written since Begin
func (s *Slot[T]) Commit() {
	s.ready.Store(true)
}

// Ready reports whether a published value is waiting
func (s *Slot[T]) Ready() bool {
	return s.ready.Load()
}

// Peek returns the published value, or nil if none is waiting
func (s *Slot[T]) Peek() *T {
	if !s.ready.Load() {
		return nil
	}
	return &s.value
}

// Clear returns the storage to the producer
func (s *Slot[T]) Clear() {
	s.ready.Store(false)
}
