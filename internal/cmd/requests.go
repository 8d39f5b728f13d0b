package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/payment"
)

var requestsCmd = &cobra.Command{
	Use:   "request",
	Short: "Inspect and manage payment requests",
}

var requestShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show a stored payment or batch request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		requestID := args[0]

		if request, err := client.GetPaymentRequest(requestID); err == nil {
			printJSON(request)
			return
		}

		request, err := client.GetBatchRequest(requestID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		printJSON(request)
	},
}

var requestCancelCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Cancel a request that has not started executing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := client.CancelRequest(args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Request %s cancelled\n", args[0])
	},
}

var requestCreateCmd = &cobra.Command{
	Use:   "create <network-id>",
	Short: "Create a payment request from flags",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		token, _ := cmd.Flags().GetString("token")
		amount, _ := cmd.Flags().GetString("amount")
		currency, _ := cmd.Flags().GetString("currency")
		to, _ := cmd.Flags().GetString("to")
		action, _ := cmd.Flags().GetString("action")
		valueUsd, _ := cmd.Flags().GetFloat64("value-usd")

		request, err := client.CreatePaymentRequest(args[0],
			payment.PreparedTransaction{},
			payment.PaymentDetails{Token: token, Amount: amount, Currency: currency, To: to},
			payment.PaymentMetadata{Action: action, ValueUSD: valueUsd},
			payment.PaymentPolicy{})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		printJSON(request)
	},
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func init() {
	requestCreateCmd.Flags().String("token", "", "token contract address")
	requestCreateCmd.Flags().String("amount", "", "amount in smallest token unit, or decimal with --currency")
	requestCreateCmd.Flags().String("currency", "", "currency symbol for decimal amounts (USDC, ETH, ...)")
	requestCreateCmd.Flags().String("to", "", "recipient address")
	requestCreateCmd.Flags().String("action", "transfer", "action label")
	requestCreateCmd.Flags().Float64("value-usd", 0, "USD value for spend accounting")

	requestsCmd.AddCommand(requestShowCmd)
	requestsCmd.AddCommand(requestCancelCmd)
	requestsCmd.AddCommand(requestCreateCmd)
	rootCmd.AddCommand(requestsCmd)
}
