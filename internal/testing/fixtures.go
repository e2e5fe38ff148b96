package testing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nedlands/propnet/internal/domain"
	"github.com/nedlands/propnet/internal/store"
)

// NewParticipantFixture inserts a human investor with the given name
// and balance.
func NewParticipantFixture(t *testing.T, st *store.Store, name string, balance int64) *domain.Participant {
	t.Helper()

	p := &domain.Participant{
		Name:     name,
		Kind:     domain.KindHuman,
		Role:     domain.RoleInvestor,
		Balance:  decimal.NewFromInt(balance),
		IsActive: true,
	}
	if err := st.Participants.Create(st.DB(), p); err != nil {
		t.Fatalf("Failed to create participant fixture: %v", err)
	}
	return p
}

// NewPropertyFixture inserts an available tokenized house with 100000
// tokens at one dollar.
func NewPropertyFixture(t *testing.T, st *store.Store, address string) *domain.PropertyState {
	t.Helper()

	tokens := decimal.NewFromInt(100000)
	p := &domain.PropertyState{
		Address:            address,
		Suburb:             "Subiaco",
		PropertyType:       "house",
		Status:             domain.PropertyAvailable,
		EnabledAtMonth:     1,
		TotalTokens:        tokens,
		TokensAvailable:    tokens,
		TokenPrice:         decimal.NewFromInt(1),
		WeeklyRent:         decimal.NewFromInt(650),
		CurrentValuation:   decimal.NewFromInt(750000),
		LastValuationMonth: 1,
	}
	if err := st.Properties.Create(st.DB(), p); err != nil {
		t.Fatalf("Failed to create property fixture: %v", err)
	}
	return p
}

// NewTenantedPropertyFixture inserts a tenanted house with the given
// participant on a twelve month lease.
func NewTenantedPropertyFixture(t *testing.T, st *store.Store, address string, tenantID string) *domain.PropertyState {
	t.Helper()

	p := NewPropertyFixture(t, st, address)
	p, err := st.Properties.SetTenant(st.DB(), p.ID, tenantID, p.WeeklyRent, 1, 12)
	if err != nil {
		t.Fatalf("Failed to tenant property fixture: %v", err)
	}
	return p
}
