package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	two := int64(2)
	cases := []struct {
		name      string
		tx        Transaction
		viewer    int64
		direction Direction
		desc      string
	}{
		{name: "deposit", tx: Transaction{Type: TypeDeposit, SenderID: 1}, viewer: 1, direction: DirectionIn, desc: "Deposit"},
		{name: "withdraw", tx: Transaction{Type: TypeWithdraw, SenderID: 1}, viewer: 1, direction: DirectionOut, desc: "Withdrawal"},
		{name: "transfer sent", tx: Transaction{Type: TypeTransfer, SenderID: 1, RecipientID: &two}, viewer: 1, direction: DirectionOut, desc: "Transfer sent to 2"},
		{name: "transfer received", tx: Transaction{Type: TypeTransfer, SenderID: 1, RecipientID: &two}, viewer: 2, direction: DirectionIn, desc: "Transfer received from 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			direction, desc := Describe(tc.tx, tc.viewer)
			assert.Equal(t, tc.direction, direction)
			assert.Equal(t, tc.desc, desc)
		})
	}
}

func TestAnnotatePreservesOrder(t *testing.T) {
	two := int64(2)
	txs := []Transaction{
		{ID: 3, Type: TypeDeposit, SenderID: 1},
		{ID: 7, Type: TypeTransfer, SenderID: 1, RecipientID: &two},
		{ID: 9, Type: TypeWithdraw, SenderID: 1},
	}
	entries := Annotate(txs, 1)
	assert.Len(t, entries, 3)
	assert.Equal(t, []int64{3, 7, 9}, []int64{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, &two, entries[1].RecipientID)
	assert.Equal(t, DirectionOut, entries[1].Direction)
}
