package payout

import (
	"context"
	"fmt"
	"sync"

	"github.com/creatorpay/ledger/pkg/money"
)

// MockProvider is an in-memory Provider for tests and local development.
type MockProvider struct {
	mu sync.Mutex

	// FailWith, when set, is returned by InitiatePayout.
	FailWith error

	calls map[string]string // idempotency key -> provider ref
	next  int
}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{calls: make(map[string]string)}
}

// InitiatePayout implements Provider. Repeated calls with the same
// idempotency key return the same provider ref.
func (m *MockProvider) InitiatePayout(
	_ context.Context,
	_ string,
	_ money.Money,
	idempotencyKey string,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	if ref, ok := m.calls[idempotencyKey]; ok {
		return ref, nil
	}
	m.next++
	ref := fmt.Sprintf("tr_mock_%06d", m.next)
	m.calls[idempotencyKey] = ref
	return ref, nil
}

// Calls returns the number of distinct initiations seen.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
