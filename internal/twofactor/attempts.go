package twofactor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/khanghh/supagate/internal/store"
	"github.com/khanghh/supagate/params"
)

// AttemptState tracks failed code submissions of a user within a window.
type AttemptState struct {
	FailCount int `redis:"fail_count"`
}

type attemptStore struct {
	store.Store[AttemptState]
}

func attemptKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

func (s *attemptStore) FailCount(ctx context.Context, userID uint) (int, error) {
	state, err := s.Get(ctx, attemptKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	return state.FailCount, err
}

// IncreaseFailCount bumps the counter. The first failure starts a window
// of the given length, measured by the backing store.
func (s *attemptStore) IncreaseFailCount(ctx context.Context, userID uint, window time.Duration) (int, error) {
	id := attemptKey(userID)
	count, err := s.IncrAttr(ctx, id, "fail_count", 1)
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.Expire(ctx, id, window); err != nil {
			return int(count), err
		}
	}
	return int(count), nil
}

func (s *attemptStore) Reset(ctx context.Context, userID uint) error {
	err := s.Delete(ctx, attemptKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func newAttemptStore(storage store.Storage) *attemptStore {
	return &attemptStore{
		Store: store.New[AttemptState](storage, params.AttemptKeyPrefix),
	}
}
