package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/payment"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Evaluate security policy against a transaction preview",
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <policy-file> <preview-file>",
	Short: "Evaluate a policy file against a transaction preview file",
	Long: `Evaluate a security policy (JSON) against a transaction preview (JSON)
and print the decision. The owner flag folds today's settled spend into the
daily cap check.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var policy payment.Policy
		if err := readJSONFile(args[0], &policy); err != nil {
			fmt.Printf("Error reading policy: %v\n", err)
			os.Exit(1)
		}

		var preview payment.TransactionPreview
		if err := readJSONFile(args[1], &preview); err != nil {
			fmt.Printf("Error reading preview: %v\n", err)
			os.Exit(1)
		}

		owner, _ := cmd.Flags().GetString("owner")

		decision, err := client.EvaluatePolicy(&preview, &policy, owner)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		printJSON(decision)
		if !decision.Allowed {
			os.Exit(2)
		}
	},
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func init() {
	policyCheckCmd.Flags().String("owner", "", "owner address for daily spend lookup")

	policyCmd.AddCommand(policyCheckCmd)
	rootCmd.AddCommand(policyCmd)
}
