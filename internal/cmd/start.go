package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sponsorgate node",
	Long: `Start the sponsorgate node.

This will:
- Open the request and pending-action stores
- Load the network registry
- Start the periodic expiry sweep
- Serve payment request lifecycle operations until interrupted`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("Starting SponsorGate node...", "cli")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client.StartExpirySweep(ctx)

		for _, networkID := range networks.NetworkIDs() {
			network, err := networks.Get(networkID)
			if err != nil {
				continue
			}
			logger.Info(fmt.Sprintf("Network %s (%s): verifier=%s executor=%s",
				networkID, network.Name, network.PaymentVerifier, network.BatchExecutor), "cli")
		}

		fmt.Println("SponsorGate node is running. Press Ctrl+C to stop.")

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutdown signal received, stopping node...", "cli")
		client.Stop()
		cancel()

		if err := dbManager.PerformMaintenance(); err != nil {
			logger.Warn(fmt.Sprintf("Database maintenance failed: %v", err), "cli")
		}

		logger.Info("SponsorGate node stopped successfully", "cli")
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
