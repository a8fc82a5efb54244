package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextAccountCode(t *testing.T) {
	tests := []struct {
		name          string
		accountType   AccountType
		last          string
		want          string
		wantRestarted bool
	}{
		{name: "first asset", accountType: AccountTypeAsset, last: "", want: "A-001"},
		{name: "increments", accountType: AccountTypeIncome, last: "R-007", want: "R-008"},
		{name: "grows past three digits", accountType: AccountTypeExpense, last: "X-999", want: "X-1000"},
		{name: "liability prefix", accountType: AccountTypeLiability, last: "L-041", want: "L-042"},
		{name: "unparseable suffix restarts", accountType: AccountTypeEquity, last: "E-abc", want: "E-001", wantRestarted: true},
		{name: "foreign prefix restarts", accountType: AccountTypeAsset, last: "L-004", want: "A-001", wantRestarted: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, restarted := NextAccountCode(tc.accountType, tc.last)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantRestarted, restarted)
		})
	}
}

func TestAccountType(t *testing.T) {
	assert.True(t, AccountTypeAsset.IsValid())
	assert.False(t, AccountType("revenue").IsValid())
	assert.True(t, AccountTypeExpense.DebitNormal())
	assert.False(t, AccountTypeEquity.DebitNormal())
	assert.Equal(t, "R", AccountTypeIncome.CodePrefix())
}

func TestNextReference(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "TXN-20240105-001", NextReference(day, ""))
	assert.Equal(t, "TXN-20240105-013", NextReference(day, "TXN-20240105-012"))
	assert.Equal(t, "TXN-20240105-001", NextReference(day, "TXN-20240104-009"))
	assert.Equal(t, "TXN-20240105-%", ReferencePattern(day))
}
