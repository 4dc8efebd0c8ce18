package e2ee

import (
	"context"
	"fmt"
	"sync"

	"vibe_chat/internal/model"
	"vibe_chat/internal/protocol/roomkey"
	"vibe_chat/internal/utils/log"

	"go.uber.org/zap"
)

// fanOutLimit bounds concurrent per-member distribution during bootstrap.
const fanOutLimit = 4

type MemberStatus int

const (
	MemberDistributed MemberStatus = iota
	MemberSkipped                  // member has no published device key
	MemberFailed
)

type (
	MemberResult struct {
		UserID string
		Status MemberStatus
		Err    error
	}

	// BootstrapOutcome reports how a bootstrap attempt resolved: Won means
	// our generated key became the room key; otherwise a concurrent
	// bootstrapper's key was adopted.
	BootstrapOutcome struct {
		Key          roomkey.RoomKey
		Won          bool
		Distribution []MemberResult
	}
)

// ObtainRoomKey returns the agreed room key for a conversation. Idempotent
// and safe to race against other devices: local cache first, then the sealed
// entry addressed to us, then the bootstrap path. The remote store's
// insert-if-absent is the only arbitration between concurrent bootstrappers.
func (s *Session) ObtainRoomKey(ctx context.Context, partyID string) (roomkey.RoomKey, error) {
	identity, err := s.EnsureDeviceIdentity(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if rk, ok := s.roomKeys[partyID]; ok {
		s.mu.Unlock()
		return rk, nil
	}
	s.mu.Unlock()

	exported, err := s.keys.GetRoomKey(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load room key: %w", err)
	}
	if exported != "" {
		rk, err := roomkey.Import(exported)
		if err != nil {
			return nil, err
		}
		s.cacheRoomKey(partyID, rk)
		return rk, nil
	}

	sealed, err := s.store.GetSealedKey(ctx, partyID, s.userID)
	if err != nil {
		return nil, fmt.Errorf("fetch sealed key: %w", err)
	}
	if sealed != nil {
		rk, err := roomkey.Unseal(sealed.EncryptedRoomKey, identity.PrivateKeyPKCS8, sealed.SenderPublicKeySPKI)
		if err != nil {
			return nil, fmt.Errorf("unseal room key: %w", err)
		}
		if err := s.keys.PutRoomKey(ctx, partyID, rk.Export()); err != nil {
			return nil, err
		}
		s.cacheRoomKey(partyID, rk)
		return rk, nil
	}

	outcome, err := s.bootstrap(ctx, partyID, identity)
	if err != nil {
		return nil, err
	}
	for _, res := range outcome.Distribution {
		if res.Status == MemberFailed {
			log.Error("room key distribution failed for member",
				zap.String("party_id", partyID),
				zap.String("user_id", res.UserID),
				zap.Error(res.Err))
		}
	}
	if !outcome.Won {
		log.Info("lost room key bootstrap race, adopted winner",
			zap.String("party_id", partyID))
	}

	s.cacheRoomKey(partyID, outcome.Key)
	return outcome.Key, nil
}

// bootstrap runs the first-use creation path: generate a key, propose it via
// insert-if-absent for ourselves, distribute sealed copies to the other
// members best-effort, then re-read our own slot to confirm the proposal or
// adopt whoever won it.
//
// Partial distribution on error is recoverable: a member without a sealed
// copy runs its own bootstrap next time it opens the conversation.
func (s *Session) bootstrap(ctx context.Context, partyID string, identity *model.DeviceIdentity) (*BootstrapOutcome, error) {
	rk, err := roomkey.Generate()
	if err != nil {
		return nil, err
	}
	if err := s.keys.PutRoomKey(ctx, partyID, rk.Export()); err != nil {
		return nil, fmt.Errorf("cache generated room key: %w", err)
	}

	selfSealed, err := roomkey.Seal(rk, identity.PrivateKeyPKCS8, identity.PublicKeySPKI)
	if err != nil {
		return nil, fmt.Errorf("seal room key for self: %w", err)
	}
	if err := s.store.EnsureSealedKey(ctx, &model.SealedRoomKeyEntry{
		PartyID:             partyID,
		UserID:              s.userID,
		EncryptedRoomKey:    selfSealed,
		SenderDeviceID:      identity.DeviceID,
		SenderPublicKeySPKI: identity.PublicKeySPKI,
	}); err != nil {
		return nil, fmt.Errorf("propose room key: %w", err)
	}

	members, err := s.store.ListMembers(ctx, partyID, s.userID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	distribution := s.distribute(ctx, partyID, identity, rk, members)

	// Confirm-or-adopt: whoever landed the insert for our slot first wins.
	// Comparison is byte equality of the sealed payload, not a timestamp.
	final, err := s.store.GetSealedKey(ctx, partyID, s.userID)
	if err != nil {
		return nil, fmt.Errorf("re-read own sealed key: %w", err)
	}
	if final == nil {
		return nil, fmt.Errorf("own sealed key missing after propose")
	}

	if final.EncryptedRoomKey == selfSealed {
		return &BootstrapOutcome{Key: rk, Won: true, Distribution: distribution}, nil
	}

	winner, err := roomkey.Unseal(final.EncryptedRoomKey, identity.PrivateKeyPKCS8, final.SenderPublicKeySPKI)
	if err != nil {
		return nil, fmt.Errorf("unseal winning room key: %w", err)
	}
	if err := s.keys.PutRoomKey(ctx, partyID, winner.Export()); err != nil {
		return nil, err
	}
	return &BootstrapOutcome{Key: winner, Won: false, Distribution: distribution}, nil
}

// distribute seals the room key for each member and writes their slot,
// insert-if-absent. Per-member failures never abort the remaining fan-out.
func (s *Session) distribute(ctx context.Context, partyID string, identity *model.DeviceIdentity, rk roomkey.RoomKey, members []string) []MemberResult {
	results := make([]MemberResult, len(members))

	var wg sync.WaitGroup
	sem := make(chan struct{}, fanOutLimit)
	for i, member := range members {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, member string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.distributeOne(ctx, partyID, identity, rk, member)
		}(i, member)
	}
	wg.Wait()

	return results
}

func (s *Session) distributeOne(ctx context.Context, partyID string, identity *model.DeviceIdentity, rk roomkey.RoomKey, member string) MemberResult {
	device, err := s.store.GetDevice(ctx, member, model.DefaultDeviceLabel)
	if err != nil {
		return MemberResult{UserID: member, Status: MemberFailed, Err: err}
	}
	if device == nil || device.PublicKeySPKI == "" {
		return MemberResult{UserID: member, Status: MemberSkipped}
	}

	sealed, err := roomkey.Seal(rk, identity.PrivateKeyPKCS8, device.PublicKeySPKI)
	if err != nil {
		return MemberResult{UserID: member, Status: MemberFailed, Err: err}
	}
	if err := s.store.EnsureSealedKey(ctx, &model.SealedRoomKeyEntry{
		PartyID:             partyID,
		UserID:              member,
		EncryptedRoomKey:    sealed,
		SenderDeviceID:      identity.DeviceID,
		SenderPublicKeySPKI: identity.PublicKeySPKI,
	}); err != nil {
		return MemberResult{UserID: member, Status: MemberFailed, Err: err}
	}
	return MemberResult{UserID: member, Status: MemberDistributed}
}

func (s *Session) cacheRoomKey(partyID string, rk roomkey.RoomKey) {
	s.mu.Lock()
	s.roomKeys[partyID] = rk
	s.mu.Unlock()
}
