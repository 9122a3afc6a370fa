// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Serial bridge flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Native bus flags
	i2cBus string
	useSim bool

	// Device profile and diagnostics
	configPath  string
	captureFile string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "tunestat",
	Short: "DVB-T/T2/C tuner-demodulator control tool",
	Long: `Tunestat - A CLI tool for driving a tuner/demodulator pair over I2C.

Provides commands to initialize the pair, tune and lock DVB-T, DVB-T2 and DVB-C
channels, read signal telemetry, scan frequency ranges and inspect captured
bus traffic.

Bus modes:
  Native I2C: --i2c /dev/i2c-1 (or "" for the first bus found)
  Serial:     --port /dev/ttyUSB0 [--baud 115200]   (I2C bridge)
  WebSocket:  --url ws://host/path [--username user] (I2C bridge)
  Simulator:  --sim

For WebSocket authentication, the password is read from the TUNESTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "0.3.0",
	SilenceUsage: true,
}

func init() {
	// Serial bridge flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of the I2C bridge")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of the I2C bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Native bus flags
	rootCmd.PersistentFlags().StringVar(&i2cBus, "i2c", "", "Linux I2C bus name or device path")
	rootCmd.PersistentFlags().BoolVar(&useSim, "sim", false, "Use the built-in device simulator")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Device profile (YAML)")
	rootCmd.PersistentFlags().StringVar(&captureFile, "capture-file", "", "Append bus transactions to a capture file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every bus transaction")
}

// newLogger builds the console logger shared by all commands.
func newLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
