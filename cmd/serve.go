// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/bridge"
	"github.com/Thermoquad/tunestat/pkg/config"
)

var (
	serveListen string
	servePath   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the local I2C bus as a WebSocket bridge",
	Long: `Serve the bridge protocol over WebSocket so another tunestat instance can
reach the chips with --url.

The local bus is selected with --i2c or --sim. One client is served at a time;
further connections are refused until it disconnects.

When --username is set, clients must authenticate with HTTP Basic auth using
that username and the password from TUNESTAT_PASSWORD (or the prompt).

Example:
  tunestat serve --i2c /dev/i2c-1 --listen :8080
  tunestat probe --url ws://host:8080/bridge`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&servePath, "path", "/bridge", "WebSocket endpoint path")
}

// bridgeHandler upgrades requests and runs one bridge.Server session per
// connection, one at a time.
type bridgeHandler struct {
	server   *bridge.Server
	upgrader websocket.Upgrader
	link     bridge.LinkConfig
	log      *zap.Logger

	username string
	password string

	busy sync.Mutex
}

func (h *bridgeHandler) authorized(r *http.Request) bool {
	if h.username == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.password)) == 1
	return userOK && passOK
}

func (h *bridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="tunestat"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.busy.TryLock() {
		http.Error(w, "bridge busy", http.StatusServiceUnavailable)
		return
	}
	defer h.busy.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	link := bridge.NewWebSocketLink(conn, h.link)
	defer link.Close()

	log := h.log.With(zap.String("remote", r.RemoteAddr))
	log.Info("client connected")
	if err := h.server.Serve(link); err != nil {
		log.Warn("session ended", zap.Error(err), zap.Int("dropped", link.Dropped()))
		return
	}
	log.Info("client disconnected", zap.Int("dropped", link.Dropped()))
}

func runServe(cmd *cobra.Command, args []string) error {
	if wsURL != "" || portName != "" {
		return fmt.Errorf("serve needs a local bus: use --i2c or --sim")
	}
	log := newLogger()
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	b, info, err := OpenBus(cfg.Bridge, log)
	if err != nil {
		return err
	}
	defer b.Close()

	h := &bridgeHandler{
		server:   bridge.NewServer(b, log.Named("bridge")),
		upgrader: websocket.Upgrader{HandshakeTimeout: cfg.Bridge.HandshakeTimeout},
		link:     linkConfig(cfg.Bridge),
		log:      log.Named("serve"),
		username: wsUsername,
	}
	if wsUsername != "" {
		h.password, err = readPassword()
		if err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.Handle(servePath, h)

	fmt.Printf("Tunestat - Bridge Server\n")
	fmt.Printf("Bus: %s\n", info)
	fmt.Printf("Listening: ws://%s%s\n\n", serveListen, servePath)

	return http.ListenAndServe(serveListen, mux)
}
