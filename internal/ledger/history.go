package ledger

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the flow of funds relative to the viewing account.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// HistoryEntry is a transaction annotated for a specific viewer.
type HistoryEntry struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        Type            `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
	SenderID    int64           `json:"sender_id"`
	RecipientID *int64          `json:"recipient_id,omitempty"`
}

// Describe derives direction and description of tx as seen by viewerID.
func Describe(tx Transaction, viewerID int64) (Direction, string) {
	switch tx.Type {
	case TypeDeposit:
		return DirectionIn, "Deposit"
	case TypeWithdraw:
		return DirectionOut, "Withdrawal"
	case TypeTransfer:
		if tx.SenderID == viewerID {
			return DirectionOut, "Transfer sent to " + recipientLabel(tx)
		}
		return DirectionIn, "Transfer received from " + strconv.FormatInt(tx.SenderID, 10)
	}
	return "", string(tx.Type)
}

func recipientLabel(tx Transaction) string {
	if tx.RecipientID == nil {
		return "unknown"
	}
	return strconv.FormatInt(*tx.RecipientID, 10)
}

// Annotate formats every transaction for viewerID, preserving order.
func Annotate(txs []Transaction, viewerID int64) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(txs))
	for _, tx := range txs {
		direction, description := Describe(tx, viewerID)
		out = append(out, HistoryEntry{
			ID:          tx.ID,
			Amount:      tx.Amount,
			Type:        tx.Type,
			CreatedAt:   tx.CreatedAt,
			Direction:   direction,
			Description: description,
			SenderID:    tx.SenderID,
			RecipientID: tx.RecipientID,
		})
	}
	return out
}
