// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dmx

import "errors"

var (
	ErrNoPorts = errors.New("board has no ports")
	ErrTimeout = errors.New("operation timed out")
)
