// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Thermoquad/tunestat/pkg/bridge"
	"github.com/Thermoquad/tunestat/pkg/bus"
	"github.com/Thermoquad/tunestat/pkg/bus/i2cdev"
	"github.com/Thermoquad/tunestat/pkg/bus/sim"
	"github.com/Thermoquad/tunestat/pkg/config"
)

// passwordEnv holds the bridge password for non-interactive use.
const passwordEnv = "TUNESTAT_PASSWORD"

// readPassword returns the bridge password from passwordEnv, or prompts for
// it with echo disabled when stdin is a terminal.
func readPassword() (string, error) {
	if pw, ok := os.LookupEnv(passwordEnv); ok {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	fmt.Fprint(os.Stderr, "Bridge password: ")
	defer fmt.Fprintln(os.Stderr)

	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	pw, err := term.ReadPassword(fd)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// linkConfig maps the profile and the connection flags onto a bridge link.
func linkConfig(cfg config.Bridge) bridge.LinkConfig {
	return bridge.LinkConfig{
		ReadTimeout:      cfg.ReadTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		Username:         wsUsername,
		SkipTLSVerify:    wsNoSSLVerify,
	}
}

// openLink opens the byte link to the bridge selected by --url or --port.
func openLink(cfg config.Bridge) (io.ReadWriteCloser, string, error) {
	lc := linkConfig(cfg)

	switch {
	case wsURL != "":
		if lc.Username != "" {
			pw, err := readPassword()
			if err != nil {
				return nil, "", err
			}
			lc.Password = pw
		}
		link, err := bridge.DialWebSocket(wsURL, lc)
		if err != nil {
			return nil, "", err
		}
		return link, "WebSocket bridge: " + wsURL, nil

	case portName != "":
		link, err := bridge.OpenSerial(portName, baudRate, lc)
		if err != nil {
			return nil, "", err
		}
		return link, "Serial bridge: " + link.String(), nil
	}

	return nil, "", fmt.Errorf("no bridge selected: use --port or --url")
}

// OpenBus opens the transport selected by the bus flags
func OpenBus(cfg config.Bridge, log *zap.Logger) (bus.Closer, string, error) {
	switch {
	case useSim:
		return sim.New(sim.DefaultConfig()), "Simulator", nil

	case i2cBus != "" || rootCmd.PersistentFlags().Changed("i2c"):
		b, err := i2cdev.Open(i2cBus)
		if err != nil {
			return nil, "", err
		}
		return b, fmt.Sprintf("Native: %s", b), nil

	case wsURL != "" || portName != "":
		link, info, err := openLink(cfg)
		if err != nil {
			return nil, "", err
		}
		client := bridge.NewClient(link, bridge.ClientConfig{
			Timeout: cfg.Timeout,
			Log:     log.Named("bridge"),
		})
		return client, info, nil
	}

	return nil, "", fmt.Errorf("either --i2c, --port, --url or --sim must be specified")
}
