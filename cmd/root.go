// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/Thermoquad/lumen/pkg/driver/serialport"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portNames []string

	// Parameter file
	configPath string

	verbose bool

	// Host receive tuning
	breakAsNull bool
	idleGap     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "lumen",
	Short: "DMX512/RDM Transceiver",
	Long: `Lumen - A CLI tool for sending, receiving and monitoring DMX512 and RDM.

Each --port is one RS-485 line driven by a USB serial adapter (250000 baud,
8N2). The adapter's RTS signal switches the transceiver direction.

Transmit timing (break, mark-after-break, refresh rate, slot count) is read
from the --config parameter file when it exists, and can be overridden with
per-command flags.

For WebSocket authentication, the password is read from the LUMEN_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVarP(&portNames, "port", "p", nil, "Serial port device (repeat for more ports)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "lumen.cbor", "Parameter file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log engine debug messages to stderr")
	rootCmd.PersistentFlags().BoolVar(&breakAsNull, "break-as-null", true, "Treat the 0x00 the serial driver reports for a break as the break")
	rootCmd.PersistentFlags().DurationVar(&idleGap, "idle-gap", serialport.DefaultIdleGap, "Line silence taken as a break when no break marker is seen")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
