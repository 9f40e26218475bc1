// Package main provides the CLI entry point for hotspot, a guest Wi-Fi
// access approval relay.
//
// Guests request access through a captive-portal web form; the request is
// broadcast to registered Telegram chats, and an approver's decision is
// applied to the UniFi controller and reflected back to the guest.
//
// # Basic Usage
//
// Start both workers:
//
//	hotspot serve --config hotspot.yaml
//
// # Environment Variables
//
// ${VAR} references inside the configuration file are expanded from the
// environment, so secrets like the bot token can be kept out of the file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "hotspot",
		Short:         "Guest Wi-Fi access approval relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
