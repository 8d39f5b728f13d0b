package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/database"
	"github.com/sponsorgate-labs/sponsorgate-node/internal/payment"
	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

var (
	configPath string
	config     *utils.ConfigManager
	logger     *utils.LogsManager
	dbManager  *database.SQLiteManager
	networks   *payment.NetworkRegistry
	client     *payment.FacilitatorClient
)

var rootCmd = &cobra.Command{
	Use:   "sponsorgate",
	Short: "SponsorGate gas-sponsored payment node",
	Long: `A facilitator-side node that decouples off-chain payment authorization
from on-chain execution.

Users sign EIP-712 witnesses binding exactly one payment; the node verifies
signatures locally, enforces security policy and sponsor gas budgets, and
settles through a facilitator service so users never need native gas.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize configuration
		config = utils.NewConfigManager(configPath)

		// Initialize logging
		logger = utils.NewLogsManager(config)

		// Version and help style commands need no wiring
		if cmd.Name() == "version" {
			return
		}

		var err error
		dbManager, err = database.NewSQLiteManager(config, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to initialize database: %v", err), "cli")
			fmt.Printf("Error initializing database: %v\n", err)
			os.Exit(1)
		}

		networks, err = payment.NewNetworkRegistry(config, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to load network registry: %v", err), "cli")
			fmt.Printf("Error loading networks: %v\n", err)
			os.Exit(1)
		}

		backend, err := payment.NewSettlementBackend(config, networks, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to initialize settlement backend: %v", err), "cli")
			fmt.Printf("Error initializing settlement backend: %v\n", err)
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("Settlement backend: %s", backend.Name()), "cli")

		client = payment.NewFacilitatorClient(config, logger, dbManager, networks, backend)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Cleanup
		if dbManager != nil {
			dbManager.Close()
		}
		if logger != nil {
			logger.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
}
