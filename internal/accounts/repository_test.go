package accounts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceUpdateError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "check violation", err: &pgconn.PgError{Code: "23514"}, want: ErrNegativeBalance},
		{name: "numeric overflow", err: &pgconn.PgError{Code: "22003"}, want: ErrBalanceOverflow},
		{name: "wrapped overflow", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "22003"}), want: ErrBalanceOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, balanceUpdateError(tc.err), tc.want)
		})
	}
}

func TestBalanceUpdateErrorKeepsUnknownCause(t *testing.T) {
	cause := errors.New("conn reset")
	err := balanceUpdateError(cause)
	require.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrBalanceOverflow)
	assert.NotErrorIs(t, err, ErrNegativeBalance)
}
