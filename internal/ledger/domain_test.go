package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/farmledger/farmledger/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMovementsValidate(t *testing.T) {
	cases := []struct {
		name    string
		m       Movements
		wantErr bool
	}{
		{"credit AFG only", Movements{CreditAFG: dec("5000")}, false},
		{"debit USD only", Movements{DebitUSD: dec("12.50")}, false},
		{"both currencies", Movements{CreditAFG: dec("100"), DebitUSD: dec("2")}, false},
		{"debit and credit AFG", Movements{DebitAFG: dec("10"), CreditAFG: dec("10")}, true},
		{"debit and credit USD", Movements{DebitUSD: dec("1"), CreditUSD: dec("2")}, true},
		{"all zero", Movements{}, true},
		{"negative amount", Movements{CreditAFG: dec("-5")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.m.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidMovement)
				require.ErrorIs(t, err, shared.ErrInvariant)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMovementsReversedCancels(t *testing.T) {
	m := Movements{CreditAFG: dec("5000"), DebitUSD: dec("40")}
	r := m.Reversed()
	require.True(t, m.CreditAFG.Equal(r.DebitAFG))
	require.True(t, m.DebitUSD.Equal(r.CreditUSD))

	sum := m.Merge(r)
	require.True(t, sum.CreditAFG.Sub(sum.DebitAFG).IsZero())
	require.True(t, sum.CreditUSD.Sub(sum.DebitUSD).IsZero())
}

func TestDebitCreditBuilders(t *testing.T) {
	m := Credit(CurrencyAFG, dec("100")).Merge(Debit(CurrencyUSD, dec("3")))
	require.NoError(t, m.Validate())
	require.True(t, m.CreditAFG.Equal(dec("100")))
	require.True(t, m.DebitUSD.Equal(dec("3")))
	require.True(t, m.DebitAFG.IsZero())
}
