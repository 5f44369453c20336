package kv

import "sync"

// Memory is a map-backed Store. Tests use it to simulate a second browsing
// context writing to the shared medium.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
	subs map[int]func(Change)
	next int
}

func NewMemoryMap() *Memory {
	return &Memory{
		data: map[string]string{},
		subs: map[int]func(Change){},
	}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	m.notify(Change{Key: key, Value: &value})
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	m.notify(Change{Key: key})
	return nil
}

func (m *Memory) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Memory) notify(c Change) {
	m.mu.Lock()
	fns := make([]func(Change), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
