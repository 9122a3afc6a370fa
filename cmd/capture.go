// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tunestat/pkg/capture"
)

var (
	captureTarget     string
	captureKind       string
	captureFailedOnly bool
	captureStats      bool
)

var captureCmd = &cobra.Command{
	Use:   "capture <file" + capture.FileExt + ">",
	Short: "Display a bus capture file in human-readable format",
	Long: `Decode and display the bus transactions recorded with --capture-file.

Each line shows the timestamp, event kind, target chip, command name, the
bytes sent and received, CTS poll count, duration and any error.

Filters:
  --target tuner|demod     only events for one chip
  --kind cmd|poll|wr|rd|state
  --failed                 only failed transactions`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVar(&captureTarget, "target", "", "Only show events for this chip (tuner, demod)")
	captureCmd.Flags().StringVar(&captureKind, "kind", "", "Only show events of this kind (cmd, poll, wr, rd, state)")
	captureCmd.Flags().BoolVar(&captureFailedOnly, "failed", false, "Only show failed transactions")
	captureCmd.Flags().BoolVar(&captureStats, "stats", false, "Print statistics after the listing")
}

func parseKind(s string) (capture.Kind, error) {
	if s == "" {
		return 0, nil
	}
	for _, k := range []capture.Kind{
		capture.KindCommand, capture.KindPoll, capture.KindBusWrite, capture.KindBusRead, capture.KindState,
	} {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

func runCapture(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(captureKind)
	if err != nil {
		return err
	}
	switch captureTarget {
	case "", capture.TargetTuner, capture.TargetDemod:
	default:
		return fmt.Errorf("unknown target %q", captureTarget)
	}

	r, err := capture.NewFilteredReader(args[0], capture.Filter{
		Target:     captureTarget,
		Kind:       kind,
		FailedOnly: captureFailedOnly,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("Tunestat - Capture Log\n")
	fmt.Printf("File: %s\n\n", args[0])

	stats := capture.NewStatistics()
	count := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A truncated tail is expected when the writer was killed
			fmt.Printf("[ERROR] %v\n", err)
			break
		}
		fmt.Println(capture.FormatEvent(e))
		stats.Log(e)
		count++
	}

	fmt.Printf("\n%d events\n", count)
	if captureStats {
		fmt.Print(stats.String())
	}
	return nil
}
