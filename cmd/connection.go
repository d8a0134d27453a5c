// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/lumen/pkg/dmx"
	"github.com/Thermoquad/lumen/pkg/driver/serialport"
	"github.com/Thermoquad/lumen/pkg/params"
	"github.com/gorilla/websocket"
	"golang.org/x/term"
)

// Node is an engine running on serial ports
type Node struct {
	Engine *dmx.Engine
	Params params.Params

	hw *serialport.Hardware
}

// Close stops all ports and releases the serial devices
func (n *Node) Close() error {
	for i := range n.Engine.Ports() {
		n.Engine.SetPortDirection(i, dmx.DirectionInput, false)
	}
	return n.hw.Close()
}

// Info describes the node's ports
func (n *Node) Info() string {
	return fmt.Sprintf("Serial: %s @ %d baud", strings.Join(portNames, ", "), serialport.BaudRate)
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// serialOptions builds the host binding options from the root flags
func serialOptions(logger *slog.Logger) serialport.Options {
	opts := serialport.DefaultOptions()
	opts.BreakAsNull = breakAsNull
	if idleGap > 0 {
		opts.IdleGap = idleGap
	}
	opts.Logger = logger
	return opts
}

// loadParams reads the parameter file and applies flag overrides
func loadParams(override func(*params.Params)) (params.Params, error) {
	p, err := params.Load(configPath)
	if err != nil {
		return params.Params{}, err
	}
	if override != nil {
		override(&p)
	}
	return p, nil
}

// OpenNode opens every --port and starts an engine on them. All ports start
// disabled as inputs.
func OpenNode(override func(*params.Params)) (*Node, error) {
	if len(portNames) == 0 {
		return nil, fmt.Errorf("at least one --port must be specified")
	}

	p, err := loadParams(override)
	if err != nil {
		return nil, err
	}

	logger := newLogger()
	opts := serialOptions(logger)

	board := serialport.Board(portNames...)
	hw, err := serialport.Open(board, opts)
	if err != nil {
		return nil, err
	}

	e, err := dmx.New(board, hw, dmx.WithLogger(logger), dmx.WithRxTimeoutGuard(opts.IdleGap))
	if err != nil {
		hw.Close()
		return nil, err
	}
	p.Apply(e)
	logger.Debug("parameters applied", "config", configPath, "params", p.String())

	return &Node{Engine: e, Params: p, hw: hw}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (*websocket.Conn, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return conn, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("LUMEN_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}
