package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meurenda/internal/core"
)

// SyncOp is the ledger change carried by a sync message.
type SyncOp string

const (
	OpUpsert SyncOp = "upsert"
	OpDelete SyncOp = "delete"
	OpClear  SyncOp = "clear"
	OpReset  SyncOp = "reset"
)

var ErrInvalidMessage = errors.New("invalid sync message")

// TransactionSyncMessage describes one mutation of the ledger so that
// consumers can mirror it.
type TransactionSyncMessage struct {
	Op            SyncOp               `json:"op"`
	Transaction   *core.Transaction    `json:"transaction,omitempty"`
	TransactionID string               `json:"transactionId,omitempty"`
	Type          core.TransactionType `json:"type,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

func NewUpsertMessage(tx core.Transaction) *TransactionSyncMessage {
	return &TransactionSyncMessage{Op: OpUpsert, Transaction: &tx, TransactionID: tx.ID, Timestamp: time.Now()}
}

func NewDeleteMessage(id string) *TransactionSyncMessage {
	return &TransactionSyncMessage{Op: OpDelete, TransactionID: id, Timestamp: time.Now()}
}

func NewClearMessage(typ core.TransactionType) *TransactionSyncMessage {
	return &TransactionSyncMessage{Op: OpClear, Type: typ, Timestamp: time.Now()}
}

func NewResetMessage() *TransactionSyncMessage {
	return &TransactionSyncMessage{Op: OpReset, Timestamp: time.Now()}
}

// Validate checks that the fields required by Op are present.
func (m *TransactionSyncMessage) Validate() error {
	switch m.Op {
	case OpUpsert:
		if m.Transaction == nil {
			return fmt.Errorf("%w: upsert without transaction", ErrInvalidMessage)
		}
		if err := m.Transaction.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	case OpDelete:
		if m.TransactionID == "" {
			return fmt.Errorf("%w: delete without transaction id", ErrInvalidMessage)
		}
	case OpClear:
		if !m.Type.Valid() {
			return fmt.Errorf("%w: clear with type %q", ErrInvalidMessage, m.Type)
		}
	case OpReset:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidMessage, m.Op)
	}
	return nil
}

func (m *TransactionSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSyncMessageFromJSON decodes and validates a message body.
func TransactionSyncMessageFromJSON(data []byte) (*TransactionSyncMessage, error) {
	var msg TransactionSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
