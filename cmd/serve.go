// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/status"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveNode     string
	serveUsername string
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Publish port status over WebSocket",
	Long: `Listen on every --port and publish a status report to WebSocket clients.

Each report is one binary CBOR message holding the timing, uptime and
per-port statistics of the node. Connect with the status command:

  lumen serve -p /dev/ttyUSB0 --addr :8080
  lumen status --url ws://localhost:8080/status

With --username set, clients must authenticate with HTTP Basic auth. The
password is read from LUMEN_PASSWORD or prompted for.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveNode, "node", "", "Node name in reports (default hostname)")
	serveCmd.Flags().StringVar(&serveUsername, "username", "", "Require HTTP Basic auth with this user")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", time.Second, "Report interval")
}

// reportHub fans the latest report out to every connected client
type reportHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func newReportHub() *reportHub {
	return &reportHub{clients: make(map[chan []byte]struct{})}
}

func (h *reportHub) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *reportHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// publish hands data to every client; slow clients skip a report
func (h *reportHub) publish(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
		}
	}
}

func authorized(r *http.Request, username, password string) bool {
	if username == "" {
		return true
	}
	u, p, ok := r.BasicAuth()
	return ok &&
		subtle.ConstantTimeCompare([]byte(u), []byte(username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
}

func statusHandler(hub *reportHub, username, password string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="lumen"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		reports := hub.subscribe()
		defer hub.unsubscribe(reports)

		// Detect client close
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case data := <-reports:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					log.Printf("Write to %s failed: %v", r.RemoteAddr, err)
					return
				}
			}
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	password := ""
	if serveUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return err
		}
	}
	if serveNode == "" {
		serveNode, _ = os.Hostname()
	}

	node, err := OpenNode(nil)
	if err != nil {
		return err
	}
	defer node.Close()
	e := node.Engine

	for i := range e.Ports() {
		e.SetPortDirection(i, dmx.DirectionInput, true)
	}

	hub := newReportHub()
	mux := http.NewServeMux()
	mux.Handle("/status", statusHandler(hub, serveUsername, password))
	server := &http.Server{Addr: serveAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	fmt.Printf("Lumen - Status Server\n")
	fmt.Printf("Connection: %s\n", node.Info())
	fmt.Printf("Listening: ws://%s/status\n", serveAddr)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-interrupt:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(ctx)

		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server failed: %w", err)

		case <-pollTicker.C:
			// Keep the receive slots drained so every frame is published
			for i := range e.Ports() {
				e.DMXAvailable(i)
				e.RDMReceive(i)
			}

		case <-ticker.C:
			data, err := status.New(e, serveNode).Marshal()
			if err != nil {
				log.Printf("Report failed: %v", err)
				continue
			}
			hub.publish(data)
		}
	}
}
