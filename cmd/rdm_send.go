// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/rdm"
	"github.com/spf13/cobra"
)

var (
	rdmDestination string
	rdmSource      string
	rdmClass       string
	rdmPID         string
	rdmSubDevice   uint16
	rdmTransaction uint8
	rdmData        string
	rdmRaw         string
	rdmTimeout     time.Duration
)

var rdmSendCmd = &cobra.Command{
	Use:   "rdm_send",
	Short: "Send an RDM request and print the response",
	Long: `Send one RDM message on the first --port and wait for the response.

The message is built from the header flags, or given whole with --raw as hex
without the checksum. The checksum is appended before sending.

Examples:
  # GET DEVICE_INFO from a fixture
  lumen rdm_send -p /dev/ttyUSB0 --dest 4C55:00000001 --class get --pid 0x0060

  # DISC_UNIQUE_BRANCH over the whole UID space
  lumen rdm_send -p /dev/ttyUSB0 --class disc --pid 0x0001 \
    --data 000000000000FFFFFFFFFFFF

Exit codes:
  0 - Response received
  1 - No response before --timeout
  2 - Connection error`,
	RunE: runRDMSend,
}

func init() {
	rootCmd.AddCommand(rdmSendCmd)
	rdmSendCmd.Flags().StringVar(&rdmDestination, "dest", rdm.BroadcastUID.String(), "Destination UID (MMMM:DDDDDDDD)")
	rdmSendCmd.Flags().StringVar(&rdmSource, "source", "4C55:00000001", "Source UID (MMMM:DDDDDDDD)")
	rdmSendCmd.Flags().StringVar(&rdmClass, "class", "get", "Command class (disc, get, set)")
	rdmSendCmd.Flags().StringVar(&rdmPID, "pid", "0x0060", "Parameter ID")
	rdmSendCmd.Flags().Uint16Var(&rdmSubDevice, "sub", 0, "Sub-device")
	rdmSendCmd.Flags().Uint8Var(&rdmTransaction, "tn", 0, "Transaction number")
	rdmSendCmd.Flags().StringVar(&rdmData, "data", "", "Parameter data as hex")
	rdmSendCmd.Flags().StringVar(&rdmRaw, "raw", "", "Whole message as hex, without checksum")
	rdmSendCmd.Flags().DurationVar(&rdmTimeout, "timeout", 100*time.Millisecond, "Response timeout")
}

func parseCommandClass(s string) (rdm.CommandClass, error) {
	switch strings.ToLower(s) {
	case "disc", "discovery":
		return rdm.DiscoveryCommand, nil
	case "get":
		return rdm.GetCommand, nil
	case "set":
		return rdm.SetCommand, nil
	default:
		return 0, fmt.Errorf("unknown command class: %s (use disc, get or set)", s)
	}
}

func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %v", s, err)
	}
	return data, nil
}

// buildRDMMessage returns the message without its checksum
func buildRDMMessage() ([]byte, error) {
	if rdmRaw != "" {
		return parseHex(rdmRaw)
	}

	var h rdm.Header
	var err error
	if h.Destination, err = rdm.ParseUID(rdmDestination); err != nil {
		return nil, err
	}
	if h.Source, err = rdm.ParseUID(rdmSource); err != nil {
		return nil, err
	}
	if h.CommandClass, err = parseCommandClass(rdmClass); err != nil {
		return nil, err
	}
	pid, err := strconv.ParseUint(rdmPID, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid PID %q: %v", rdmPID, err)
	}
	h.ParameterID = uint16(pid)
	h.SubDevice = rdmSubDevice
	h.TransactionNumber = rdmTransaction
	h.PortID = 1

	var data []byte
	if rdmData != "" {
		if data, err = parseHex(rdmData); err != nil {
			return nil, err
		}
	}
	frame, err := rdm.Encode(h, data)
	if err != nil {
		return nil, err
	}
	return frame[:len(frame)-rdm.ChecksumSize], nil
}

func runRDMSend(cmd *cobra.Command, args []string) error {
	msg, err := buildRDMMessage()
	if err != nil {
		return err
	}
	if len(msg) == 0 {
		return fmt.Errorf("empty RDM message")
	}

	node, err := OpenNode(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer node.Close()
	e := node.Engine

	fmt.Printf("Lumen - RDM Send\n")
	fmt.Printf("Connection: %s\n", node.Info())
	fmt.Printf("Timeout: %v\n\n", rdmTimeout)

	e.SetPortDirection(0, dmx.DirectionInput, true)
	sent := rdm.AppendChecksum(append([]byte(nil), msg...))
	fmt.Printf("Sending:\n%s\n", rdm.FormatFrame(sent))
	e.RDMSend(0, msg)

	response, err := e.RDMReceiveWithTimeout(0, rdmTimeout)
	if errors.Is(err, dmx.ErrTimeout) {
		s := e.TotalStatistics(0).RDM.Received
		fmt.Fprintf(os.Stderr, "TIMEOUT: No response within %v (%d bad checksums)\n", rdmTimeout, s.Bad)
		node.Close()
		os.Exit(1)
	}

	fmt.Printf("Response (%d bytes):\n%s", len(response), rdm.FormatFrame(response))
	return nil
}
