// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/tunestat/pkg/frontend"
	"github.com/Thermoquad/tunestat/pkg/telemetry"
)

var (
	tuneSystem     string
	tuneFreqMHz    float64
	tuneBandwidth  float64
	tuneModulation string
	tuneSymbolRate uint32
	tunePLP        int
	tuneNoInit     bool
	tuneStatus     bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Tune a channel and wait for lock",
	Long: `Initialize the pair, tune the given channel and wait for the demodulator to
lock.

Examples:
  # DVB-T2 multiplex, PLP 0
  tunestat tune --sim --system dvbt2 --freq 474 --bw 8 --plp 0

  # DVB-C 256-QAM at 6.9 MBd
  tunestat tune --i2c /dev/i2c-1 --system dvbc --freq 346 --mod qam256 --sr 6900000

Exit codes:
  0 - Locked
  1 - Not locked (budget exhausted or demodulator gave up)
  2 - Connection or bus error`,
	RunE: runTune,
}

func init() {
	rootCmd.AddCommand(tuneCmd)
	addTuneFlags(tuneCmd)
	tuneCmd.Flags().BoolVar(&tuneNoInit, "no-init", false, "Skip the power-up sequence")
	tuneCmd.Flags().BoolVar(&tuneStatus, "status", true, "Print telemetry after lock")
}

// addTuneFlags registers the channel description flags shared by tune-like
// commands.
func addTuneFlags(c *cobra.Command) {
	c.Flags().StringVarP(&tuneSystem, "system", "s", "dvbt2", "Delivery system (dvbt, dvbt2, dvbc)")
	c.Flags().Float64VarP(&tuneFreqMHz, "freq", "f", 0, "Centre frequency in MHz")
	c.Flags().Float64Var(&tuneBandwidth, "bw", 8, "Channel bandwidth in MHz (DVB-T/T2)")
	c.Flags().StringVar(&tuneModulation, "mod", "auto", "Modulation (qpsk, qam16, qam32, qam64, qam128, qam256, auto)")
	c.Flags().Uint32Var(&tuneSymbolRate, "sr", 6900000, "Symbol rate in Bd (DVB-C)")
	c.Flags().IntVar(&tunePLP, "plp", -1, "DVB-T2 PLP id (-1 keeps the previous selection)")
}

// parseSystem accepts the usual spellings of a delivery system name.
func parseSystem(s string) (frontend.DeliverySystem, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "dvbt":
		return frontend.DVBT, nil
	case "dvbt2":
		return frontend.DVBT2, nil
	case "dvbc", "dvbc/annexa", "dvbca":
		return frontend.DVBC, nil
	default:
		return frontend.Undefined, fmt.Errorf("unknown delivery system %q", s)
	}
}

// tuneRequest builds a request from the channel flags at freqHz.
func tuneRequest(freqHz uint32) (frontend.TuneRequest, error) {
	system, err := parseSystem(tuneSystem)
	if err != nil {
		return frontend.TuneRequest{}, err
	}
	req := frontend.TuneRequest{
		System:     system,
		Frequency:  freqHz,
		Bandwidth:  uint32(math.Round(tuneBandwidth * 1e6)),
		Modulation: telemetry.ParseModulation(tuneModulation),
		SymbolRate: tuneSymbolRate,
		StreamID:   frontend.NoStreamFilter,
	}
	if tunePLP >= 0 {
		req.StreamID = uint32(tunePLP)
	}
	return req, nil
}

func mhzToHz(mhz float64) uint32 {
	return uint32(math.Round(mhz * 1e6))
}

func describeRequest(req frontend.TuneRequest) string {
	desc := fmt.Sprintf("%s %.3f MHz", req.System, float64(req.Frequency)/1e6)
	switch req.System {
	case frontend.DVBC:
		desc += fmt.Sprintf(" %s %d Bd", req.Modulation, req.SymbolRate)
	default:
		desc += fmt.Sprintf(" %.0f MHz", float64(req.Bandwidth)/1e6)
	}
	if req.System == frontend.DVBT2 && req.StreamID != frontend.NoStreamFilter {
		desc += fmt.Sprintf(" PLP %d", req.StreamID)
	}
	return desc
}

func runTune(cmd *cobra.Command, args []string) error {
	if tuneFreqMHz <= 0 {
		return fmt.Errorf("--freq is required")
	}
	req, err := tuneRequest(mhzToHz(tuneFreqMHz))
	if err != nil {
		return err
	}

	s, err := openSession(sessionOptions{
		observer: func(st frontend.TuneState) {
			// Tune sub-protocol progress, --verbose only
			if verbose {
				fmt.Printf("  tuner: %s\n", st)
			}
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("Tunestat - Tune\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Channel: %s\n\n", describeRequest(req))

	if !tuneNoInit {
		if err := s.fe.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
			s.Close()
			os.Exit(2)
		}
	}

	res, err := s.fe.Tune(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tune failed: %v\n", err)
		s.Close()
		os.Exit(2)
	}
	s.log.Debug("tune finished",
		zap.Bool("locked", res.Locked),
		zap.Bool("aborted", res.Aborted),
		zap.Int("attempts", res.Attempts))

	switch {
	case res.Locked:
		fmt.Printf("✓ LOCKED after %d polls\n\n", res.Attempts)
	case res.Aborted:
		fmt.Printf("✗ No signal (demodulator gave up after %d polls)\n", res.Attempts)
	default:
		fmt.Printf("✗ No lock after %d polls\n", res.Attempts)
	}

	if res.Locked && tuneStatus {
		r, err := readTelemetry(s.fe)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			s.Close()
			os.Exit(2)
		}
		printReading(r)
	}

	if !res.Locked {
		s.Close()
		os.Exit(1)
	}
	return nil
}
