package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/khanghh/supagate/params"
	"github.com/spf13/cast"
)

type memoryEntry struct {
	fields    map[string]string
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStorage keeps hashes in process memory. Field values are stored as
// strings the same way Redis does, so callers observe identical coercion.
// Expired entries are dropped on access and by a periodic sweep.
type MemoryStorage struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	now        func() time.Time
	gcInterval time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

func (s *MemoryStorage) lookup(key string) (*memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return entry, true
}

func toFields(val any) (map[string]string, error) {
	var raw map[string]any
	switch v := val.(type) {
	case map[string]any:
		raw = v
	case map[string]string:
		fields := make(map[string]string, len(v))
		for k, s := range v {
			fields[k] = s
		}
		return fields, nil
	default:
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName: "redis",
			Result:  &raw,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(val); err != nil {
			return nil, err
		}
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		str, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = str
	}
	return fields, nil
}

func (s *MemoryStorage) Get(ctx context.Context, key string, val any) error {
	s.mu.Lock()
	entry, ok := s.lookup(key)
	var fields map[string]string
	if ok {
		fields = make(map[string]string, len(entry.fields))
		for k, v := range entry.fields {
			fields[k] = v
		}
	}
	s.mu.Unlock()
	if !ok || len(fields) == 0 {
		return ErrNotFound
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "redis",
		WeaklyTypedInput: true,
		Result:           val,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(fields)
}

func (s *MemoryStorage) Set(ctx context.Context, key string, val any, expiresIn time.Duration) error {
	if expiresIn == -1 {
		return s.Save(ctx, key, val)
	}
	fields, err := toFields(val)
	if err != nil {
		return err
	}
	entry := &memoryEntry{fields: fields}
	if expiresIn > 0 {
		entry.expiresAt = s.now().Add(expiresIn)
	}
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Save(ctx context.Context, key string, val any) error {
	fields, err := toFields(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookup(key)
	if !ok {
		entry = &memoryEntry{fields: make(map[string]string, len(fields))}
		s.entries[key] = entry
	}
	for k, v := range fields {
		entry.fields[k] = v
	}
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); !ok {
		return ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

// Expire starts a relative TTL measured on the storage clock.
func (s *MemoryStorage) Expire(ctx context.Context, key string, expiresIn time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.lookup(key); ok {
		entry.expiresAt = s.now().Add(expiresIn)
	}
	return nil
}

func (s *MemoryStorage) SetAttr(ctx context.Context, key string, field string, val any) error {
	str, err := cast.ToStringE(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookup(key)
	if !ok {
		entry = &memoryEntry{fields: make(map[string]string)}
		s.entries[key] = entry
	}
	entry.fields[field] = str
	return nil
}

func (s *MemoryStorage) GetAttr(ctx context.Context, key, field string, val any) error {
	s.mu.Lock()
	var (
		str   string
		found bool
	)
	if entry, ok := s.lookup(key); ok {
		str, found = entry.fields[field]
	}
	s.mu.Unlock()
	if !found {
		return ErrNotFound
	}

	var err error
	switch v := val.(type) {
	case *string:
		*v = str
	case *bool:
		*v, err = cast.ToBoolE(str)
	case *int:
		*v, err = cast.ToIntE(str)
	case *int64:
		*v, err = cast.ToInt64E(str)
	case *uint64:
		*v, err = cast.ToUint64E(str)
	case *float64:
		*v, err = cast.ToFloat64E(str)
	case *time.Duration:
		*v, err = cast.ToDurationE(str)
	default:
		return fmt.Errorf("unsupported attribute type %T", val)
	}
	return err
}

func (s *MemoryStorage) IncrAttr(ctx context.Context, key, field string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookup(key)
	if !ok {
		entry = &memoryEntry{fields: make(map[string]string)}
		s.entries[key] = entry
	}
	current, err := cast.ToInt64E(entry.fields[field])
	if err != nil && entry.fields[field] != "" {
		return 0, fmt.Errorf("field %s is not an integer", field)
	}
	current += delta
	entry.fields[field] = cast.ToString(current)
	return current, nil
}

func (s *MemoryStorage) DelAttr(ctx context.Context, key string, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.lookup(key); ok {
		delete(entry.fields, field)
	}
	return nil
}

// sweep removes every expired entry and reports how many were dropped.
func (s *MemoryStorage) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStorage) gc() {
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// Close stops the background sweep.
func (s *MemoryStorage) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

type MemoryOption func(*MemoryStorage)

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		s.now = now
	}
}

// WithGCInterval sets how often expired entries are swept. Zero disables the sweep.
func WithGCInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStorage) {
		s.gcInterval = interval
	}
}

func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		entries:    make(map[string]*memoryEntry),
		now:        time.Now,
		gcInterval: params.MemoryStorageGCInterval,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gcInterval > 0 {
		go s.gc()
	}
	return s
}
