package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	meta    meta
	payload []byte
}

type memoryStore struct {
	items       map[string]memoryEntry
	mutex       sync.RWMutex
	ttl         time.Duration
	threshold   int
	cleanupFreq time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewMemory builds an in-memory blob store with a background GC loop.
func NewMemory(cfg Config) Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	cleanup := time.Minute
	if cfg.Memory != nil && cfg.Memory.GCInterval > 0 {
		cleanup = cfg.Memory.GCInterval
	}
	s := &memoryStore{
		items:       make(map[string]memoryEntry),
		ttl:         ttl,
		threshold:   cfg.CompressThreshold,
		cleanupFreq: cleanup,
		stop:        make(chan struct{}),
	}
	go s.gcLoop()
	return s
}

func (s *memoryStore) gcLoop() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.CleanupExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}

func (s *memoryStore) Put(_ context.Context, id string, blob *Blob) error {
	if err := validID("blob.put", id); err != nil {
		return err
	}
	b := stamp(blob, s.ttl)
	payload, encoding, err := compress(b.Data, s.threshold)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	s.items[id] = memoryEntry{meta: metaOf(b, encoding), payload: payload}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Blob, error) {
	s.mutex.RLock()
	entry, ok := s.items[id]
	s.mutex.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if entry.meta.ExpiresAt != nil && time.Now().After(*entry.meta.ExpiresAt) {
		return nil, ErrNotFound
	}
	data, err := decompress(entry.payload, entry.meta.Encoding)
	if err != nil {
		return nil, err
	}
	return entry.meta.blob(data), nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	delete(s.items, id)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) error {
	now := time.Now()
	s.mutex.Lock()
	for id, entry := range s.items {
		if entry.meta.ExpiresAt != nil && now.After(*entry.meta.ExpiresAt) {
			delete(s.items, id)
		}
	}
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (Stats, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	st := Stats{Driver: DriverMemory, TTLSeconds: int(s.ttl.Seconds())}
	for _, entry := range s.items {
		st.Entries++
		st.Bytes += int64(len(entry.payload))
	}
	return st, nil
}

func (s *memoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	return nil
}
