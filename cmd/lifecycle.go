// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Power up the tuner and demodulator",
	Long: `Run the full power-up sequence: tuner wake-up and property defaults, demod
power-up, ROM id read-back, firmware patch download when a patch for the ROM
is registered, and demod property defaults.

Firmware patches are loaded from the firmware.dir of the device profile.`,
	RunE: runInit,
}

var sleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Put the tuner and demodulator into standby",
	RunE:  runSleep,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sleepCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Tunestat - Init\n")
	fmt.Printf("Connection: %s\n\n", s.info)

	if err := s.fe.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	info := s.fe.Info()
	fmt.Printf("Device:     %s\n", info.Name)
	fmt.Printf("ROM id:     %d\n", s.fe.ROMID())
	fmt.Printf("Systems:    %v\n", info.Systems)
	fmt.Printf("Frequency:  %.3f - %.3f MHz (step %.1f kHz)\n",
		float64(info.FrequencyMin)/1e6, float64(info.FrequencyMax)/1e6, float64(info.FrequencyStep)/1e3)
	fmt.Printf("SymbolRate: %d - %d Bd\n\n", info.SymbolRateMin, info.SymbolRateMax)
	fmt.Print(s.stats.String())
	return nil
}

func runSleep(cmd *cobra.Command, args []string) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.fe.Sleep(); err != nil {
		return fmt.Errorf("sleep: %w", err)
	}
	fmt.Printf("Tuner and demodulator in standby (%s)\n", s.info)
	return nil
}
