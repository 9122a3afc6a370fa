// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Tunestat - DVB-T/T2/C tuner-demodulator control tool
//
// A CLI tool for initializing, tuning and monitoring a tuner/demodulator
// pair over native I2C or an I2C bridge.

package main

import (
	"os"

	"github.com/Thermoquad/tunestat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
