// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tunestat/pkg/bus"
	"github.com/Thermoquad/tunestat/pkg/frontend"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the bus by powering up the pair and reading the ROM id",
	Long: `Run the power-up sequence and report the demodulator ROM id.

This command checks that both chips answer on the bus, clear CTS and accept
their property defaults. It is the quickest way to verify wiring, bus
addresses and an I2C bridge link.

Exit codes:
  0 - Pair initialized
  1 - A chip did not answer (bus error, CTS timeout or device error)
  2 - Connection error`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds for the power-up sequence")
}

// probeFailure names the layer an Init error came from.
func probeFailure(err error) string {
	switch {
	case errors.Is(err, bus.ErrIO):
		return "no answer on the bus"
	case errors.Is(err, frontend.ErrTimeout):
		return "CTS never set"
	case errors.Is(err, frontend.ErrDevice):
		return "device reported an error"
	case errors.Is(err, frontend.ErrPolling):
		return "status read failed"
	default:
		return "init failed"
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	addrs := s.fe.Engine().Addresses()
	fmt.Printf("Tunestat - Probe\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Tuner: 0x%02X  Demod: 0x%02X\n", addrs.Tuner, addrs.Demod)
	fmt.Printf("Timeout: %d seconds\n\n", probeTimeout)

	errChan := make(chan error, 1)
	start := time.Now()
	go func() {
		errChan <- s.fe.Init()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAILED: %s\n  %v\n", probeFailure(err), err)
			s.Close()
			os.Exit(1)
		}
		fmt.Printf("SUCCESS: Pair initialized in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  ROM id: %d\n", s.fe.ROMID())
		fmt.Printf("  Tuner: %s\n", s.fe.Engine().TunerFlags())
		fmt.Printf("  Demod: %s\n\n", s.fe.Engine().DemodFlags())
		fmt.Print(s.stats.String())

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: Power-up did not finish within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
