// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// ErrNotFrame is returned when a WebSocket write does not hold exactly one
// frame.
var ErrNotFrame = errors.New("not a single bridge frame")

// maxMessageSize is the largest frame after worst-case byte stuffing.
const maxMessageSize = 2 + 2*MaxFrameSize

// LinkConfig configures the byte link to a bridge. Zero values select
// defaults.
type LinkConfig struct {
	// ReadTimeout bounds one serial read. A read that times out returns no
	// bytes, which ends any partially decoded frame.
	ReadTimeout time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// Basic auth credentials, WebSocket only.
	Username string
	Password string

	SkipTLSVerify bool
}

func (c LinkConfig) withDefaults() LinkConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 100 * time.Millisecond
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 2 * time.Second
	}
	return c
}

// SerialLink is a bridge attached to a serial port.
type SerialLink struct {
	port serial.Port
	name string
	baud int
}

// OpenSerial opens a serial bridge at baud, 8N1. Bytes already waiting in
// the port are discarded so the first reply belongs to the first request.
func OpenSerial(name string, baud int, cfg LinkConfig) (*SerialLink, error) {
	cfg = cfg.withDefaults()
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial bridge %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial bridge %s: read timeout: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial bridge %s: flush: %w", name, err)
	}
	return &SerialLink{port: port, name: name, baud: baud}, nil
}

// Read returns 0, nil when the read timeout expires without data.
func (s *SerialLink) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialLink) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialLink) Close() error {
	return s.port.Close()
}

func (s *SerialLink) String() string {
	return fmt.Sprintf("%s @ %d baud", s.name, s.baud)
}

// WebSocketLink carries exactly one bridge frame per binary message.
// Messages that are not a single frame are dropped on read and refused on
// write.
type WebSocketLink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	wmu sync.Mutex

	msg     []byte
	dropped int
}

// NewWebSocketLink wraps an established connection, client or server side.
func NewWebSocketLink(conn *websocket.Conn, cfg LinkConfig) *WebSocketLink {
	cfg = cfg.withDefaults()
	conn.SetReadLimit(maxMessageSize)
	return &WebSocketLink{conn: conn, writeTimeout: cfg.WriteTimeout}
}

// DialWebSocket connects to a ws:// or wss:// bridge endpoint.
func DialWebSocket(rawURL string, cfg LinkConfig) (*WebSocketLink, error) {
	cfg = cfg.withDefaults()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if cfg.Username != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HandshakeTimeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(ctx, rawURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket bridge (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket bridge: %w", err)
	}
	return NewWebSocketLink(conn, cfg), nil
}

// isFrame reports whether b is one complete frame and nothing else.
func isFrame(b []byte) bool {
	if len(b) < 2 || b[0] != StartByte || b[len(b)-1] != EndByte {
		return false
	}
	body := b[1 : len(b)-1]
	return bytes.IndexByte(body, StartByte) < 0 && bytes.IndexByte(body, EndByte) < 0
}

// Read returns the bytes of the current frame message, reading the next
// one when it is used up. A normal close from the peer reads as io.EOF.
func (w *WebSocketLink) Read(p []byte) (int, error) {
	for len(w.msg) == 0 {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if kind != websocket.BinaryMessage || !isFrame(data) {
			w.dropped++
			continue
		}
		w.msg = data
	}
	n := copy(p, w.msg)
	w.msg = w.msg[n:]
	return n, nil
}

// Write sends p, which must be exactly one frame, as one message.
func (w *WebSocketLink) Write(p []byte) (int, error) {
	if !isFrame(p) {
		return 0, ErrNotFrame
	}
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return 0, err
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Dropped returns the number of received messages that were not a frame.
// It must not be called while a Read is in progress.
func (w *WebSocketLink) Dropped() int {
	return w.dropped
}

// Close sends a normal close message and closes the connection.
func (w *WebSocketLink) Close() error {
	w.wmu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeTimeout))
	w.wmu.Unlock()
	return w.conn.Close()
}

func (w *WebSocketLink) String() string {
	return w.conn.RemoteAddr().String()
}
