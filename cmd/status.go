// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/Thermoquad/lumen/pkg/status"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	statusCount int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print status reports from a lumen server",
	Long: `Connect to a node running "lumen serve" and print its status reports.

Exit codes:
  0 - --count reports received
  2 - Connection error`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&wsURL, "url", "u", "ws://localhost:8080/status", "WebSocket URL (ws:// or wss://)")
	statusCmd.Flags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	statusCmd.Flags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
	statusCmd.Flags().IntVar(&statusCount, "count", 0, "Exit after this many reports (0 runs until closed)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}

	conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Lumen - Status\n")
	fmt.Printf("Connection: WebSocket: %s\n\n", wsURL)

	for n := 0; statusCount == 0 || n < statusCount; {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		r, err := status.Unmarshal(data)
		if err != nil {
			log.Printf("Skipping report: %v", err)
			continue
		}
		fmt.Print(r)
		n++
	}
	return nil
}
