package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	value  string
	expiry time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

var _ Cache = (*Memory)(nil)

// Memory is a process local Cache. Locks only exclude within this process.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]entry
	acquireWait time.Duration
}

func NewMemory(acquireWait time.Duration) *Memory {
	return &Memory{entries: map[string]entry{}, acquireWait: acquireWait}
}

func (m *Memory) get(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expiry = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Increment(_ context.Context, key string, by int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.get(key)
	var current int64
	if e.value != "" {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		current = v
	}
	current += by
	e.value = strconv.FormatInt(current, 10)
	m.entries[key] = e
	return current, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Acquire(ctx context.Context, resources []string, ttl time.Duration) (*Lock, error) {
	if len(resources) == 0 {
		return nil, errors.New("no resources to lock")
	}
	token := uuid.NewString()
	err := acquireWithin(ctx, m.acquireWait, func() (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, res := range resources {
			if _, held := m.get(lockKey(res)); held {
				return false, nil
			}
		}
		expiry := time.Now().Add(ttl)
		for _, res := range resources {
			m.entries[lockKey(res)] = entry{value: token, expiry: expiry}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Lock{Resources: resources, Token: token, Expiry: time.Now().Add(ttl)}, nil
}

func (m *Memory) Unlock(_ context.Context, lock *Lock) error {
	if lock == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range lock.Resources {
		if e, ok := m.get(lockKey(res)); ok && e.value == lock.Token {
			delete(m.entries, lockKey(res))
		}
	}
	return nil
}
