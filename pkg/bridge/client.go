// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/bus"
)

// DefaultTimeout bounds the wait for a reply frame.
const DefaultTimeout = 500 * time.Millisecond

var (
	// ErrTimeout is returned when the bridge does not reply in time.
	ErrTimeout = errors.New("bridge reply timed out")

	// ErrClosed is returned once the link has stopped delivering bytes.
	ErrClosed = errors.New("bridge link closed")
)

// ReplyError is an ERROR reply from the bridge.
type ReplyError struct {
	Code   ErrorCode
	Reason string
}

func (e *ReplyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("bridge error %s", e.Code)
	}
	return fmt.Sprintf("bridge error %s: %s", e.Code, e.Reason)
}

// ClientConfig holds the Client settings. Zero values select defaults.
type ClientConfig struct {
	Timeout time.Duration
	Log     *zap.Logger
}

// Client is a bus.Bus that forwards every transfer to a bridge over rw.
// A background goroutine decodes incoming frames; requests are serialized so
// there is at most one outstanding at a time.
type Client struct {
	rw      io.ReadWriter
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	packets chan *Packet
	done    chan struct{}
	readErr error
}

// NewClient starts decoding frames from rw.
func NewClient(rw io.ReadWriter, cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	c := &Client{
		rw:      rw,
		timeout: cfg.Timeout,
		log:     cfg.Log,
		packets: make(chan *Packet, 16),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	defer close(c.done)

	dec := NewDecoder()
	buf := make([]byte, 256)
	for {
		n, err := c.rw.Read(buf)
		if n == 0 && err == nil {
			// idle link, a partial frame will not complete
			dec.Reset()
			continue
		}
		for _, b := range buf[:n] {
			p, derr := dec.DecodeByte(b)
			if derr != nil {
				c.log.Debug("bridge frame dropped", zap.Error(derr))
				continue
			}
			if p == nil {
				continue
			}
			select {
			case c.packets <- p:
			default:
				c.log.Warn("bridge reply queue full", zap.String("frame", FormatPacket(p)))
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
	}
}

// drain discards replies left over from a request that timed out.
func (c *Client) drain() {
	for {
		select {
		case p := <-c.packets:
			c.log.Debug("stale bridge reply", zap.String("frame", FormatPacket(p)))
		default:
			return
		}
	}
}

// roundTrip sends req and waits for a reply with op want or an ERROR.
func (c *Client) roundTrip(req *Packet, want uint8) (*Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil, fmt.Errorf("%w: %v", ErrClosed, c.readErr)
	default:
	}
	c.drain()

	frame, err := Encode(req)
	if err != nil {
		return nil, err
	}
	c.log.Debug("bridge tx", zap.String("frame", FormatPacket(req)))
	if _, err := c.rw.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case p := <-c.packets:
			c.log.Debug("bridge rx", zap.String("frame", FormatPacket(p)))
			if p.ParseError() != nil {
				continue
			}
			switch p.Op() {
			case want:
				return p, nil
			case OpError:
				return nil, replyError(p)
			}
		case <-c.done:
			return nil, fmt.Errorf("%w: %v", ErrClosed, c.readErr)
		case <-timer.C:
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
	}
}

func replyError(p *Packet) error {
	m := p.PayloadMap()
	code, _ := GetMapUint(m, KeyCode)
	reason, _ := GetMapString(m, KeyReason)
	return &ReplyError{Code: ErrorCode(code), Reason: reason}
}

// Send implements bus.Bus.
func (c *Client) Send(addr uint16, data []byte) (int, error) {
	p, err := c.roundTrip(NewWrite(addr, data), OpWriteAck)
	if err != nil {
		return 0, bus.IOError("write", addr, err)
	}
	n, ok := GetMapUint(p.PayloadMap(), KeyCount)
	if !ok {
		return 0, bus.IOError("write", addr, fmt.Errorf("WRITE_ACK without count"))
	}
	return int(n), nil
}

// Receive implements bus.Bus.
func (c *Client) Receive(addr uint16, n int) ([]byte, error) {
	p, err := c.roundTrip(NewRead(addr, n), OpReadData)
	if err != nil {
		return nil, bus.IOError("read", addr, err)
	}
	data, _ := GetMapBytes(p.PayloadMap(), KeyData)
	if len(data) != n {
		return nil, bus.IOError("read", addr, fmt.Errorf("got %d of %d bytes", len(data), n))
	}
	return data, nil
}

// Ping measures the round trip to the bridge and returns its uptime.
func (c *Client) Ping() (rtt time.Duration, uptime time.Duration, err error) {
	start := time.Now()
	p, err := c.roundTrip(NewPing(), OpPong)
	if err != nil {
		return 0, 0, err
	}
	rtt = time.Since(start)
	ms, _ := GetMapUint(p.PayloadMap(), KeyUptime)
	return rtt, time.Duration(ms) * time.Millisecond, nil
}

// Close closes the link when it implements io.Closer.
func (c *Client) Close() error {
	if cl, ok := c.rw.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

var _ bus.Closer = (*Client)(nil)
