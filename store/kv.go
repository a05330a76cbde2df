package store

import (
	"sync"
)

// KV is a string key-value store with browser-storage semantics: values are
// opaque strings, missing keys are not errors.
//
// Client state (account, userInfo, userId, myTasks, cookies, loginWarning)
// goes to a persistent implementation. InMemoryKV backs tests and flags that
// need not outlive the process.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

type InMemoryKV struct {
	mu   sync.Mutex
	vals map[string]string
}

func NewInMemoryKV() *InMemoryKV {
	return &InMemoryKV{vals: make(map[string]string)}
}

func (s *InMemoryKV) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	return v, ok, nil
}

func (s *InMemoryKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return nil
}

func (s *InMemoryKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals, key)
	return nil
}
