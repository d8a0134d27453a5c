// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Lumen - DMX512/RDM Transceiver
//
// A CLI tool for sending, receiving and monitoring DMX512 and RDM on
// USB-RS485 adapters.

package main

import (
	"os"

	"github.com/Thermoquad/lumen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
