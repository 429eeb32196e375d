package mocks

import (
	"sync"
	"testing"
)

type Storage struct {
	GetFunc    func(key string) (string, bool, error)
	SetFunc    func(key, value string) error
	DeleteFunc func(key string) error
}

// BaselineStorage returns a Storage backed by a map.
func BaselineStorage(t *testing.T) *Storage {
	t.Helper()

	var mu sync.Mutex
	data := make(map[string]string)

	s := Storage{
		GetFunc: func(key string) (string, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			v, ok := data[key]
			return v, ok, nil
		},
		SetFunc: func(key, value string) error {
			mu.Lock()
			defer mu.Unlock()
			data[key] = value
			return nil
		},
		DeleteFunc: func(key string) error {
			mu.Lock()
			defer mu.Unlock()
			delete(data, key)
			return nil
		},
	}

	return &s
}

func (s *Storage) Get(key string) (string, bool, error) {
	return s.GetFunc(key)
}

func (s *Storage) Set(key, value string) error {
	return s.SetFunc(key, value)
}

func (s *Storage) Delete(key string) error {
	return s.DeleteFunc(key)
}
