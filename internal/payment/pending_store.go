package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sponsorgate-labs/sponsorgate-node/internal/database"
	"github.com/sponsorgate-labs/sponsorgate-node/internal/utils"
)

// PendingActionStore holds sponsorable actions deferred behind a user-sent
// ERC-20 approval, keyed by the approval request id. Once the approval
// confirms, the stored action is consumed exactly once and resumed.
type PendingActionStore struct {
	db     *database.PendingActionDB
	cm     *utils.ConfigManager
	logger *utils.LogsManager
}

// NewPendingActionStore creates a pending action store over the database layer
func NewPendingActionStore(db *database.PendingActionDB, cm *utils.ConfigManager, logger *utils.LogsManager) *PendingActionStore {
	return &PendingActionStore{
		db:     db,
		cm:     cm,
		logger: logger,
	}
}

// Store saves a deferred action keyed by its approval request id. Storing
// again under the same id replaces the previous entry.
func (ps *PendingActionStore) Store(info *PendingActionInfo) error {
	if info.ApprovalRequestID == "" {
		return fmt.Errorf("%w: pending action requires an approval request id", ErrValidation)
	}
	if err := validatePendingKind(info); err != nil {
		return err
	}

	now := time.Now()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}
	if info.ExpiresAt.IsZero() {
		ttl := ps.cm.GetConfigDuration("pending_action_ttl", 30*time.Minute)
		info.ExpiresAt = now.Add(ttl)
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %v", err)
	}

	return ps.db.Store(info.ApprovalRequestID, string(info.Kind), string(payload), info.CreatedAt, info.ExpiresAt)
}

// Get retrieves a deferred action without consuming it
func (ps *PendingActionStore) Get(approvalRequestID string) (*PendingActionInfo, error) {
	row, found, err := ps.db.Get(approvalRequestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: pending action %s", ErrNotFound, approvalRequestID)
	}
	return decodePendingAction(row)
}

// Consume retrieves and removes a deferred action. A second consume of the
// same id fails with ErrNotFound, so an action can never execute twice.
func (ps *PendingActionStore) Consume(approvalRequestID string) (*PendingActionInfo, error) {
	row, found, err := ps.db.Consume(approvalRequestID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: pending action %s", ErrNotFound, approvalRequestID)
	}

	info, err := decodePendingAction(row)
	if err != nil {
		return nil, err
	}

	ps.logger.Info(fmt.Sprintf("Resumed pending %s action for approval %s", info.Kind, approvalRequestID), "pending_actions")
	return info, nil
}

// Cancel drops a deferred action without executing it
func (ps *PendingActionStore) Cancel(approvalRequestID string) error {
	return ps.db.Delete(approvalRequestID)
}

func decodePendingAction(row *database.PendingActionRow) (*PendingActionInfo, error) {
	var info PendingActionInfo
	if err := json.Unmarshal([]byte(row.PayloadJSON), &info); err != nil {
		return nil, fmt.Errorf("corrupt pending action %s: %v", row.ID, err)
	}
	return &info, nil
}

// validatePendingKind checks that exactly the payload matching the declared
// kind is present
func validatePendingKind(info *PendingActionInfo) error {
	switch info.Kind {
	case PendingTransfer:
		if info.Transfer == nil {
			return fmt.Errorf("%w: transfer action requires a transfer payload", ErrValidation)
		}
	case PendingSwap:
		if info.Swap == nil {
			return fmt.Errorf("%w: swap action requires a swap payload", ErrValidation)
		}
	case PendingBatch:
		if info.Batch == nil || len(info.Batch.Operations) == 0 {
			return fmt.Errorf("%w: batch action requires operations", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown pending action kind %q", ErrValidation, info.Kind)
	}
	return nil
}
