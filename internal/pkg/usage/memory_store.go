package usage

import (
	"context"
	"sync"

	"github.com/inkwell-app/InkWell/app/models"
	"gorm.io/gorm"
)

type recordKey struct {
	userID    uint
	periodKey string
	action    string
}

// memoryStore keeps counters in process memory behind a mutex. It is the
// single-instance default and the test double; a multi-instance
// deployment must use the GORM store.
type memoryStore struct {
	mu      sync.Mutex
	records map[recordKey]*models.UsageRecord
	nextID  uint
}

func NewMemoryStore() Store {
	return &memoryStore{records: make(map[recordKey]*models.UsageRecord)}
}

func (s *memoryStore) EnsurePeriodRecord(ctx context.Context, rec *models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{userID: rec.UserID, periodKey: rec.PeriodKey, action: rec.Action}
	if _, ok := s.records[key]; ok {
		return nil
	}
	s.nextID++
	stored := *rec
	stored.ID = s.nextID
	s.records[key] = &stored
	return nil
}

func (s *memoryStore) TryReserve(ctx context.Context, userID uint, periodKey string, action string, amount int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey{userID: userID, periodKey: periodKey, action: action}]
	if !ok {
		return false, nil
	}
	if !rec.UnlimitedSnapshot && rec.Used+amount > rec.LimitSnapshot {
		return false, nil
	}
	rec.Used += amount
	return true, nil
}

func (s *memoryStore) Add(ctx context.Context, userID uint, periodKey string, action string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey{userID: userID, periodKey: periodKey, action: action}]
	if !ok {
		return nil
	}
	rec.Used += amount
	if rec.Used < 0 {
		rec.Used = 0
	}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, userID uint, periodKey string, action string) (*models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordKey{userID: userID, periodKey: periodKey, action: action}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}
