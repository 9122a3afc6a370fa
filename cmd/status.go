// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tunestat/pkg/frontend"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read lock status and signal telemetry",
	Long: `Read the current lock status, signal strength, SNR, BER, uncorrected block
count and the channel parameters detected by the demodulator.

The pair is not re-initialized; the reading reflects whatever the last tune
left behind.

Exit codes:
  0 - Demodulator reports lock
  1 - No lock
  2 - Connection or bus error`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// reading is one snapshot of every telemetry value the pair reports.
type reading struct {
	Status   telemetry.LockStatus
	Strength uint16
	SNR      float64
	BER      float64
	BERValid bool
	UCB      uint32
	Params   telemetry.Params
}

// readTelemetry collects a full snapshot. The first failing read aborts.
func readTelemetry(fe *frontend.Frontend) (reading, error) {
	var r reading
	var err error

	if r.Status, err = fe.ReadStatus(); err != nil {
		return r, fmt.Errorf("status: %w", err)
	}
	if r.Strength, err = fe.ReadSignalStrength(); err != nil {
		return r, fmt.Errorf("signal strength: %w", err)
	}
	if r.SNR, err = fe.ReadSNR(); err != nil {
		return r, fmt.Errorf("snr: %w", err)
	}
	if r.BER, r.BERValid, err = fe.ReadBER(); err != nil {
		return r, fmt.Errorf("ber: %w", err)
	}
	if r.UCB, err = fe.ReadUncorrectedBlocks(); err != nil {
		return r, fmt.Errorf("uncorrected blocks: %w", err)
	}
	if r.Params, err = fe.GetFrontend(); err != nil {
		return r, fmt.Errorf("frontend params: %w", err)
	}
	return r, nil
}

// strengthPercent scales the 16-bit strength to a percentage.
func strengthPercent(s uint16) float64 {
	return float64(s) * 100 / 0xFFFF
}

func printReading(r reading) {
	fmt.Printf("Status:       %s\n", r.Status)
	fmt.Printf("Strength:     %d (%.0f%%)\n", r.Strength, strengthPercent(r.Strength))
	fmt.Printf("SNR:          %.2f dB\n", r.SNR)
	fmt.Printf("BER:          %s\n", telemetry.FormatBER(r.BER, r.BERValid))
	fmt.Printf("Uncorrected:  %d\n", r.UCB)
	fmt.Printf("Parameters:   %s\n", r.Params)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Tunestat - Status\n")
	fmt.Printf("Connection: %s\n\n", s.info)

	r, err := readTelemetry(s.fe)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		s.Close()
		os.Exit(2)
	}
	printReading(r)

	if !r.Status.Locked() {
		s.Close()
		os.Exit(1)
	}
	return nil
}
