// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/rdm"
	"github.com/spf13/cobra"
)

var rdmRespondUID string

// pidDiscUniqueBranch is the discovery request that expects an encoded UID
const pidDiscUniqueBranch = 0x0001

var rdmRespondCmd = &cobra.Command{
	Use:   "rdm_respond",
	Short: "Answer RDM discovery as a responder",
	Long: `Listen on the first --port and answer DISC_UNIQUE_BRANCH requests whose
UID range contains --uid with a discovery response.

Every received message is printed. Useful for testing a controller's
discovery against a known UID.`,
	RunE: runRDMRespond,
}

func init() {
	rootCmd.AddCommand(rdmRespondCmd)
	rdmRespondCmd.Flags().StringVar(&rdmRespondUID, "uid", "4C55:12345678", "Responder UID (MMMM:DDDDDDDD)")
}

// inBranch reports whether uid lies within the lower and upper bound carried by
// a DISC_UNIQUE_BRANCH request
func inBranch(uid rdm.UID, data []byte) bool {
	if len(data) != 2*rdm.UIDSize {
		return false
	}
	return bytes.Compare(uid[:], data[:rdm.UIDSize]) >= 0 &&
		bytes.Compare(uid[:], data[rdm.UIDSize:]) <= 0
}

func runRDMRespond(cmd *cobra.Command, args []string) error {
	uid, err := rdm.ParseUID(rdmRespondUID)
	if err != nil {
		return err
	}

	node, err := OpenNode(nil)
	if err != nil {
		return err
	}
	defer node.Close()
	e := node.Engine

	fmt.Printf("Lumen - RDM Responder\n")
	fmt.Printf("Connection: %s\n", node.Info())
	fmt.Printf("UID: %s\n", uid)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	e.SetPortDirection(0, dmx.DirectionInput, true)
	response := rdm.EncodeDiscoveryResponse(uid)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	pollTicker := time.NewTicker(time.Millisecond)
	defer pollTicker.Stop()

	for {
		select {
		case <-interrupt:
			s := e.TotalStatistics(0).RDM
			fmt.Printf("\nReceived %d good, %d bad; sent %d discovery responses\n",
				s.Received.Good, s.Received.Bad, s.Sent.DiscoveryResponse)
			return nil

		case <-pollTicker.C:
			frame := e.RDMReceive(0)
			if frame == nil {
				continue
			}
			timestamp := time.Now().Format("15:04:05.000")
			fmt.Printf("[%s] %s", timestamp, rdm.FormatFrame(frame))

			h, data, err := rdm.Decode(frame)
			if err != nil {
				continue
			}
			if h.CommandClass == rdm.DiscoveryCommand && h.ParameterID == pidDiscUniqueBranch && inBranch(uid, data) {
				e.RDMSendDiscoveryRespondMessage(0, response)
				fmt.Printf("[%s] DISCOVERY_RESPONSE uid=%s sent\n", timestamp, uid)
			}
		}
	}
}
