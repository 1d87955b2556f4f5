package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"custos/pkg/platform/sentinel"
)

type memoryLease struct {
	token     string
	expiresAt time.Time
}

// Memory is the single-process lease implementation. Expiry is checked
// lazily on the next Acquire, which is enough: a crashed holder in the
// same process means the whole process is gone anyway.
type Memory struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{leases: make(map[string]memoryLease), now: time.Now}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.leases[key]; ok && m.now().Before(held.expiresAt) {
		return "", sentinel.ErrLeaseHeld
	}
	token := uuid.NewString()
	m.leases[key] = memoryLease{token: token, expiresAt: m.now().Add(ttl)}
	return token, nil
}

func (m *Memory) Release(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.leases[key]; ok && held.token == token {
		delete(m.leases, key)
	}
	return nil
}
