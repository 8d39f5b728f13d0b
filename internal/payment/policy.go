package payment

import (
	"fmt"
	"strings"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

// PolicyEngine vets transaction previews against a security policy before any
// signature is requested. A violation is a normal decision, never an error.
type PolicyEngine struct {
	logger *utils.LogsManager
}

// NewPolicyEngine creates a new policy engine
func NewPolicyEngine(logger *utils.LogsManager) *PolicyEngine {
	return &PolicyEngine{logger: logger}
}

// Evaluate applies the policy to a transaction preview. dailySpentUsd is the
// owner's already-settled spend for the current UTC day.
func (pe *PolicyEngine) Evaluate(preview *TransactionPreview, policy *Policy, dailySpentUsd float64) *PolicyDecision {
	decision := &PolicyDecision{
		Allowed:  true,
		Reasons:  []string{},
		Warnings: []string{},
	}

	// Spend caps apply at every security level
	if policy.MaxPerTxUSD > 0 && preview.AmountUSD > policy.MaxPerTxUSD {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("transaction value $%.2f exceeds per-transaction limit $%.2f", preview.AmountUSD, policy.MaxPerTxUSD))
	}

	if policy.MaxDailyUSD > 0 && dailySpentUsd+preview.AmountUSD > policy.MaxDailyUSD {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("daily spend $%.2f + $%.2f exceeds daily limit $%.2f", dailySpentUsd, preview.AmountUSD, policy.MaxDailyUSD))
	}

	switch policy.SecurityLevel {
	case SecurityStrict:
		pe.evaluateStrict(preview, policy, decision)
	case SecurityPermissive:
		// Deny lists are ignored entirely; only the spend caps above apply
	default:
		// NORMAL is the default when the level is unset
		pe.evaluateNormal(preview, policy, decision)
	}

	decision.RiskLevel = gradeRisk(decision)

	if pe.logger != nil && !decision.Allowed {
		pe.logger.Info(fmt.Sprintf("Policy blocked %s -> %s: %s",
			preview.Token, preview.Target, strings.Join(decision.Reasons, "; ")), "policy")
	}

	return decision
}

// evaluateStrict allows only transactions whose token AND target are both
// explicitly allow-listed
func (pe *PolicyEngine) evaluateStrict(preview *TransactionPreview, policy *Policy, decision *PolicyDecision) {
	if !containsAddress(policy.AllowedTokens, preview.Token) {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("token %s is not on the allow list", preview.Token))
	}

	if !containsAddress(policy.AllowedContracts, preview.Target) {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("contract %s is not on the allow list", preview.Target))
	}
}

// evaluateNormal allows by default, blocks deny-listed targets and grades
// soft risks as warnings
func (pe *PolicyEngine) evaluateNormal(preview *TransactionPreview, policy *Policy, decision *PolicyDecision) {
	if containsAddress(policy.DeniedContracts, preview.Target) {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("contract %s is on the deny list", preview.Target))
	}

	if containsAddress(policy.DeniedTokens, preview.Token) {
		decision.Allowed = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("token %s is on the deny list", preview.Token))
	}

	if policy.RequireVerifiedContracts && !preview.ContractVerified {
		decision.Warnings = append(decision.Warnings,
			fmt.Sprintf("contract %s source is not verified", preview.Target))
	}

	if policy.LargeTransactionThresholdPct > 0 && preview.HoldingsUSD > 0 {
		threshold := preview.HoldingsUSD * policy.LargeTransactionThresholdPct / 100
		if preview.AmountUSD > threshold {
			decision.Warnings = append(decision.Warnings,
				fmt.Sprintf("transfer of $%.2f exceeds %.0f%% of holdings ($%.2f)",
					preview.AmountUSD, policy.LargeTransactionThresholdPct, preview.HoldingsUSD))
		}
	}

	// Slippage is tiered: moderate excess warns, severe excess (more than
	// twice the cap) blocks
	if policy.MaxSlippageBps > 0 && preview.SlippageBps > policy.MaxSlippageBps {
		if preview.SlippageBps > 2*policy.MaxSlippageBps {
			decision.Allowed = false
			decision.Reasons = append(decision.Reasons,
				fmt.Sprintf("slippage %d bps is more than twice the %d bps limit", preview.SlippageBps, policy.MaxSlippageBps))
		} else {
			decision.Warnings = append(decision.Warnings,
				fmt.Sprintf("slippage %d bps exceeds the %d bps limit", preview.SlippageBps, policy.MaxSlippageBps))
		}
	}
}

func gradeRisk(decision *PolicyDecision) RiskLevel {
	if !decision.Allowed {
		return RiskBlocked
	}
	switch len(decision.Warnings) {
	case 0:
		return RiskLow
	case 1:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func containsAddress(list []string, address string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, address) {
			return true
		}
	}
	return false
}
