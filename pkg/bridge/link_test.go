// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/tunestat/pkg/bus/sim"
)

func TestIsFrame(t *testing.T) {
	ping, err := Encode(NewPing())
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"ping frame", ping, true},
		{"empty", nil, false},
		{"start only", []byte{StartByte}, false},
		{"missing start", ping[1:], false},
		{"missing end", ping[:len(ping)-1], false},
		{"two frames", append(append([]byte(nil), ping...), ping...), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isFrame(tt.data))
		})
	}
}

// wsBridge serves a simulator over a WebSocketLink and returns its URL and
// a channel carrying the Serve result.
func wsBridge(t *testing.T) (string, <-chan *WebSocketLink, <-chan error) {
	t.Helper()
	links := make(chan *WebSocketLink, 1)
	done := make(chan error, 1)
	srv := NewServer(sim.New(sim.DefaultConfig()), nil)

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			done <- err
			return
		}
		link := NewWebSocketLink(conn, LinkConfig{})
		defer link.Close()
		err = srv.Serve(link)
		links <- link
		done <- err
	}))
	t.Cleanup(hs.Close)
	return "ws://" + strings.TrimPrefix(hs.URL, "http://"), links, done
}

func TestWebSocketLink_RoundTrip(t *testing.T) {
	url, _, done := wsBridge(t)

	link, err := DialWebSocket(url, LinkConfig{})
	require.NoError(t, err)
	c := NewClient(link, ClientConfig{Timeout: time.Second})

	_, _, err = c.Ping()
	require.NoError(t, err)
	n, err := c.Send(0x64, []byte{0x02})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Close())
	select {
	case err := <-done:
		assert.NoError(t, err, "a normal close ends the session cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("server session did not end")
	}
}

func TestWebSocketLink_DropsNonFrames(t *testing.T) {
	url, links, done := wsBridge(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	ping, err := Encode(NewPing())
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, ping))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, append(append([]byte(nil), ping...), ping...)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, ping))

	// only the last message is answered, with exactly one frame
	kind, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.True(t, isFrame(reply))

	dec := NewDecoder()
	var p *Packet
	for _, b := range reply {
		p, err = dec.DecodeByte(b)
		require.NoError(t, err)
	}
	require.NotNil(t, p)
	assert.Equal(t, uint8(OpPong), p.Op())

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))
	conn.Close()

	select {
	case link := <-links:
		assert.Equal(t, 2, link.Dropped())
		assert.NoError(t, <-done)
	case <-time.After(2 * time.Second):
		t.Fatal("server session did not end")
	}
}

func TestWebSocketLink_WriteRefusesNonFrame(t *testing.T) {
	url, _, _ := wsBridge(t)

	link, err := DialWebSocket(url, LinkConfig{})
	require.NoError(t, err)
	defer link.Close()

	_, err = link.Write([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrNotFrame)
}

func TestDialWebSocket_BadScheme(t *testing.T) {
	_, err := DialWebSocket("http://localhost/bridge", LinkConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}
