// Package memstore is an in-memory remote.Store with the same concurrency
// semantics as the real backend: per-(party, recipient) insert-if-absent on
// sealed keys. It backs the protocol tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"vibe_chat/internal/model"
)

type MemStore struct {
	mu sync.Mutex

	devices  map[string]*model.DeviceRecord       // user_id|label
	sealed   map[string]*model.SealedRoomKeyEntry // party_id|user_id
	members  map[string][]string                  // party_id -> user_ids
	messages map[string][]*model.WireMessage      // party_id, oldest first
	feeds    map[string][]chan *model.WireMessage

	devicePuts    int
	sealedCalls   int
	sealedInserts int
}

func New() *MemStore {
	return &MemStore{
		devices:  make(map[string]*model.DeviceRecord),
		sealed:   make(map[string]*model.SealedRoomKeyEntry),
		members:  make(map[string][]string),
		messages: make(map[string][]*model.WireMessage),
		feeds:    make(map[string][]chan *model.WireMessage),
	}
}

func (s *MemStore) GetDevice(ctx context.Context, userID, label string) (*model.DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.devices[userID+"|"+label]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) PutDevice(ctx context.Context, rec *model.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devicePuts++

	key := rec.UserID + "|" + rec.DeviceLabel
	if existing, ok := s.devices[key]; ok {
		existing.PublicKeySPKI = rec.PublicKeySPKI
		existing.UpdatedAt = rec.UpdatedAt
		return nil
	}
	cp := *rec
	s.devices[key] = &cp
	return nil
}

func (s *MemStore) GetSealedKey(ctx context.Context, partyID, userID string) (*model.SealedRoomKeyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sealed[partyID+"|"+userID]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

// EnsureSealedKey inserts only if no entry exists for the recipient slot.
// Losing the race is not an error; the entry simply stays as it was.
func (s *MemStore) EnsureSealedKey(ctx context.Context, entry *model.SealedRoomKeyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealedCalls++

	key := entry.PartyID + "|" + entry.UserID
	if _, ok := s.sealed[key]; ok {
		return nil
	}
	cp := *entry
	s.sealed[key] = &cp
	s.sealedInserts++
	return nil
}

func (s *MemStore) ListMembers(ctx context.Context, partyID, excludeUserID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, u := range s.members[partyID] {
		if u != excludeUserID {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AddMember registers a conversation member (test setup).
func (s *MemStore) AddMember(partyID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[partyID] = append(s.members[partyID], userID)
}

func (s *MemStore) SendMessage(ctx context.Context, msg *model.WireMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *msg
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.PartyID] = append(s.messages[msg.PartyID], &cp)
	for _, feed := range s.feeds[msg.PartyID] {
		select {
		case feed <- &cp:
		default:
		}
	}
	return nil
}

func (s *MemStore) RecentMessages(ctx context.Context, partyID string, limit int) ([]*model.WireMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.messages[partyID]
	var out []*model.WireMessage
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *all[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) Subscribe(ctx context.Context, partyID string) (<-chan *model.WireMessage, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := make(chan *model.WireMessage, 64)
	s.feeds[partyID] = append(s.feeds[partyID], feed)

	stop := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		feeds := s.feeds[partyID]
		for i, f := range feeds {
			if f == feed {
				s.feeds[partyID] = append(feeds[:i], feeds[i+1:]...)
				close(feed)
				return
			}
		}
	}
	return feed, stop, nil
}

// SealedKeyWrites reports how many EnsureSealedKey calls were made and how
// many actually inserted, for idempotence assertions.
func (s *MemStore) SealedKeyWrites() (calls, inserts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealedCalls, s.sealedInserts
}

// DevicePuts reports how many PutDevice calls were made.
func (s *MemStore) DevicePuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devicePuts
}
