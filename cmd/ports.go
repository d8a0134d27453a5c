// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/lumen/pkg/driver/serialport"
	"github.com/spf13/cobra"
)

var portsUSBOnly bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial devices",
	Long: `List the serial devices of this host with their USB identifiers.

Any listed device can be passed to --port. DMX interfaces are usually
FTDI based USB adapters.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsUSBOnly, "usb", false, "Only list USB devices")
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serialport.List()
	if errors.Is(err, serialport.ErrNoPorts) {
		fmt.Println("No serial ports found")
		return nil
	}
	if err != nil {
		return err
	}

	count := 0
	for _, p := range ports {
		if portsUSBOnly && !p.IsUSB {
			continue
		}
		fmt.Println(p)
		count++
	}
	if count == 0 {
		fmt.Println("No serial ports found")
	}
	return nil
}
