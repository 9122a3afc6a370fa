// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tunestat/pkg/bridge"
	"github.com/Thermoquad/tunestat/pkg/config"
)

var (
	bridgePingTimeout int
	bridgePingCount   int
)

var bridgePingCmd = &cobra.Command{
	Use:   "bridge_ping",
	Short: "Test the I2C bridge link by sending PING frames",
	Long: `Send PING frames to the I2C bridge and wait for PONG.

The bridge answers PING itself without touching the I2C bus, so this command
isolates the serial or WebSocket link from the chips behind it.

This is useful for verifying:
  - The serial port or WebSocket connection is established
  - HTTP Basic authentication works
  - The bridge firmware is decoding frames
  - Bidirectional frame flow works

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runBridgePing,
}

func init() {
	rootCmd.AddCommand(bridgePingCmd)
	bridgePingCmd.Flags().IntVar(&bridgePingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	bridgePingCmd.Flags().IntVar(&bridgePingCount, "count", 3, "Number of pings to send")
}

func runBridgePing(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	link, connInfo, err := openLink(cfg.Bridge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	client := bridge.NewClient(link, bridge.ClientConfig{
		Timeout: time.Duration(bridgePingTimeout) * time.Second,
		Log:     newLogger().Named("bridge"),
	})
	defer client.Close()

	fmt.Printf("Tunestat - Bridge Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", bridgePingTimeout)
	fmt.Printf("Count: %d pings\n\n", bridgePingCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= bridgePingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, bridgePingCount)

		rtt, uptime, err := client.Ping()
		switch {
		case err == nil:
			fmt.Printf("PONG from bridge, uptime=%s, rtt=%v\n",
				formatUptime(uint64(uptime.Milliseconds())), rtt.Round(time.Millisecond))
			successCount++
		case errors.Is(err, bridge.ErrTimeout):
			fmt.Printf("TIMEOUT (no response in %ds)\n", bridgePingTimeout)
			failCount++
		case errors.Is(err, bridge.ErrClosed):
			fmt.Printf("LINK CLOSED: %v\n", err)
			client.Close()
			os.Exit(2)
		default:
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		}

		// Small delay between pings
		if i < bridgePingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		bridgePingCount, successCount, float64(failCount)/float64(bridgePingCount)*100)

	if failCount > 0 {
		client.Close()
		os.Exit(1)
	}
	return nil
}
