package store

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/rosterboard/internal/model"
)

var (
	storageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_storage_errors_total",
			Help: "Total number of failed roster storage operations",
		},
		[]string{"operation"},
	)

	rosterMembers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roster_members",
			Help: "Number of members currently on the roster",
		},
	)
)

// RosterStore implements Store on top of a durable Slot. The in-memory slice
// is authoritative for the session; the slot is flushed after each mutation.
type RosterStore struct {
	mu      sync.RWMutex
	members []model.Member
	slot    Slot
	logger  *zap.Logger
	newID   func() string
}

// NewRosterStore creates an empty RosterStore. Call Load to restore the
// durable copy.
func NewRosterStore(slot Slot, logger *zap.Logger) *RosterStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterStore{
		members: []model.Member{},
		slot:    slot,
		logger:  logger,
		newID:   newMemberID,
	}
}

// Load restores the roster from the slot.
func (s *RosterStore) Load(ctx context.Context) []model.Member {
	members := s.read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = members
	rosterMembers.Set(float64(len(members)))
	return cloneMembers(members)
}

func (s *RosterStore) read(ctx context.Context) []model.Member {
	data, err := s.slot.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrSlotEmpty) {
			storageErrorsTotal.WithLabelValues("read").Inc()
			s.logger.Warn("failed to read roster, starting empty", zap.Error(err))
		}
		return []model.Member{}
	}

	members, err := decodeRoster(data)
	if err != nil {
		storageErrorsTotal.WithLabelValues("decode").Inc()
		s.logger.Warn("stored roster is unreadable, starting empty", zap.Error(err))
		return []model.Member{}
	}

	s.logger.Info("roster restored", zap.Int("members", len(members)))
	return members
}

// List returns a copy of the roster.
func (s *RosterStore) List(_ context.Context) []model.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMembers(s.members)
}

// Len returns the roster size.
func (s *RosterStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Add appends a new member.
func (s *RosterStore) Add(ctx context.Context, fields model.MemberFields, imageURL string) model.Member {
	if imageURL == "" {
		imageURL = model.DefaultImageURL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	member := model.Member{
		ID:       s.uniqueIDLocked(),
		ImageURL: imageURL,
		UserName: fields.UserName,
		JobTitle: fields.JobTitle,
	}
	s.members = append(s.members, member)
	s.persistLocked(ctx)

	return member
}

// Update replaces display fields of the member with the given ID.
func (s *RosterStore) Update(ctx context.Context, id string, patch model.MemberFields) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}

	s.members[idx].UserName = patch.UserName
	s.members[idx].JobTitle = patch.JobTitle
	s.persistLocked(ctx)

	return true
}

// Remove deletes the member with the given ID.
func (s *RosterStore) Remove(ctx context.Context, id string) (model.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Member{}, false
	}

	removed := s.members[idx]
	s.members = append(s.members[:idx:idx], s.members[idx+1:]...)
	s.persistLocked(ctx)

	return removed, true
}

func (s *RosterStore) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.members {
		if s.members[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *RosterStore) uniqueIDLocked() string {
	for {
		id := s.newID()
		if s.indexLocked(id) < 0 {
			return id
		}
	}
}

// persistLocked flushes the roster, or clears the slot once it is empty.
// The in-memory change is already applied, so the write must not be
// abandoned when the caller's context is cancelled.
func (s *RosterStore) persistLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	rosterMembers.Set(float64(len(s.members)))

	if len(s.members) == 0 {
		if err := s.slot.Clear(ctx); err != nil {
			storageErrorsTotal.WithLabelValues("clear").Inc()
			s.logger.Warn("failed to clear roster storage", zap.Error(err))
		}
		return
	}

	data, err := encodeRoster(s.members)
	if err != nil {
		storageErrorsTotal.WithLabelValues("encode").Inc()
		s.logger.Warn("failed to encode roster", zap.Error(err))
		return
	}
	if err := s.slot.Write(ctx, data); err != nil {
		storageErrorsTotal.WithLabelValues("write").Inc()
		s.logger.Warn("failed to persist roster", zap.Error(err))
	}
}

func cloneMembers(members []model.Member) []model.Member {
	out := make([]model.Member, len(members))
	copy(out, members)
	return out
}
