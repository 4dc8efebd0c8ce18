package e2ee

import (
	"context"
	"sync"
	"testing"

	"vibe_chat/internal/keystore"
	"vibe_chat/internal/model"
	"vibe_chat/internal/protocol/roomkey"
	"vibe_chat/internal/remote/memstore"
)

func newTestSession(t *testing.T, store RemoteStore, userID string) *Session {
	t.Helper()
	keys, err := keystore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return NewSession(userID, keys, store)
}

func TestEnsureDeviceIdentityKeepsIDRotatesKey(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	// First install.
	s1 := newTestSession(t, store, "user-1")
	id1, err := s1.EnsureDeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("ensure #1: %v", err)
	}

	// Same device with wiped local storage: keeps the directory id, but a
	// fresh keypair replaces the published key.
	s2 := newTestSession(t, store, "user-1")
	id2, err := s2.EnsureDeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("ensure #2: %v", err)
	}

	if id1.DeviceID != id2.DeviceID {
		t.Fatalf("device id changed: %s vs %s", id1.DeviceID, id2.DeviceID)
	}
	if id1.PublicKeySPKI == id2.PublicKeySPKI {
		t.Fatal("expected a freshly generated key pair on re-ensure")
	}

	rec, err := store.GetDevice(ctx, "user-1", model.DefaultDeviceLabel)
	if err != nil {
		t.Fatalf("get device: %v", err)
	}
	if rec.PublicKeySPKI != id2.PublicKeySPKI {
		t.Fatal("remote record must hold the latest public key")
	}
}

func TestEnsureDeviceIdentityLocalHitSkipsDirectory(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	s := newTestSession(t, store, "user-1")
	id1, err := s.EnsureDeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	puts := store.DevicePuts()

	id2, err := s.EnsureDeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if id2.DeviceID != id1.DeviceID || id2.PrivateKeyPKCS8 != id1.PrivateKeyPKCS8 {
		t.Fatal("cached identity must be returned unchanged")
	}
	if store.DevicePuts() != puts {
		t.Fatal("local hit must not touch the directory")
	}
}

func TestObtainRoomKeyIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.AddMember("party-1", "user-1")

	s := newTestSession(t, store, "user-1")

	rk1, err := s.ObtainRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("obtain #1: %v", err)
	}
	calls1, _ := store.SealedKeyWrites()

	rk2, err := s.ObtainRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("obtain #2: %v", err)
	}
	if rk1.Export() != rk2.Export() {
		t.Fatal("second obtain must return the identical key")
	}

	calls2, _ := store.SealedKeyWrites()
	if calls2 != calls1 {
		t.Fatalf("cache hit must perform no remote writes: %d -> %d", calls1, calls2)
	}
}

func TestObtainRoomKeyFromForeignSealedEntry(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.AddMember("party-1", "alice")
	store.AddMember("party-1", "bob")

	// Bob's device key is published before anyone distributes to him.
	bob := newTestSession(t, store, "bob")
	if _, err := bob.EnsureDeviceIdentity(ctx); err != nil {
		t.Fatalf("bob identity: %v", err)
	}

	// Alice bootstraps; her device seals a copy for bob.
	alice := newTestSession(t, store, "alice")
	rkAlice, err := alice.ObtainRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("alice obtain: %v", err)
	}

	// Bob opens the chat later: his slot holds an entry sealed by a
	// different device's key pair, and his own private key unseals it.
	rkBob, err := bob.ObtainRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("bob obtain: %v", err)
	}
	if rkBob.Export() != rkAlice.Export() {
		t.Fatal("bob must adopt the key alice distributed")
	}
}

func TestBootstrapLostRaceAdoptsWinner(t *testing.T) {
	ctx := context.Background()
	base := memstore.New()
	base.AddMember("party-1", "alice")
	base.AddMember("party-1", "bob")

	alice := newTestSession(t, base, "alice")
	aliceID, err := alice.EnsureDeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("alice identity: %v", err)
	}

	bobKeys, err := keystore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	// The wrapper lands Alice's entry in Bob's own slot just before Bob's
	// propose, reproducing the multi-writer ordering hazard.
	store := &loseRaceStore{MemStore: base}
	bob := NewSession("bob", bobKeys, store)
	bobID, err := bob.EnsureDeviceIdentity(ctx)
	if err != nil {
		t.Fatalf("bob identity: %v", err)
	}

	winningKey, err := roomkey.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	sealedForBob, err := roomkey.Seal(winningKey, aliceID.PrivateKeyPKCS8, bobID.PublicKeySPKI)
	if err != nil {
		t.Fatalf("seal for bob: %v", err)
	}
	store.winner = &model.SealedRoomKeyEntry{
		PartyID:             "party-1",
		UserID:              "bob",
		EncryptedRoomKey:    sealedForBob,
		SenderDeviceID:      aliceID.DeviceID,
		SenderPublicKeySPKI: aliceID.PublicKeySPKI,
	}

	got, err := bob.ObtainRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	if got.Export() != winningKey.Export() {
		t.Fatal("bob must discard his generated key and adopt the winner")
	}

	// The local cache holds the adopted key, not the discarded one.
	cached, err := bobKeys.GetRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if cached != winningKey.Export() {
		t.Fatal("local cache must be overwritten with the winner")
	}
}

// loseRaceStore injects a competing insert for one recipient slot right
// before that recipient's own propose lands.
type loseRaceStore struct {
	*memstore.MemStore
	winner *model.SealedRoomKeyEntry
	raced  bool
}

func (s *loseRaceStore) EnsureSealedKey(ctx context.Context, entry *model.SealedRoomKeyEntry) error {
	if !s.raced && s.winner != nil && entry.UserID == s.winner.UserID {
		s.raced = true
		if err := s.MemStore.EnsureSealedKey(ctx, s.winner); err != nil {
			return err
		}
	}
	return s.MemStore.EnsureSealedKey(ctx, entry)
}

// TestBootstrapRaceConverges interleaves two full bootstraps: bob checks the
// store (empty), alice completes her entire bootstrap, then bob's writes
// land. Both devices end on alice's key, and each recipient slot holds
// exactly one entry.
func TestBootstrapRaceConverges(t *testing.T) {
	ctx := context.Background()
	base := memstore.New()
	base.AddMember("party-1", "alice")
	base.AddMember("party-1", "bob")

	alice := newTestSession(t, base, "alice")
	if _, err := alice.EnsureDeviceIdentity(ctx); err != nil {
		t.Fatalf("alice identity: %v", err)
	}

	store := &interleavedStore{MemStore: base}
	bob := newTestSession(t, store, "bob")
	if _, err := bob.EnsureDeviceIdentity(ctx); err != nil {
		t.Fatalf("bob identity: %v", err)
	}

	var rkAlice roomkey.RoomKey
	store.beforePropose = func() {
		var err error
		rkAlice, err = alice.ObtainRoomKey(ctx, "party-1")
		if err != nil {
			t.Errorf("alice obtain: %v", err)
		}
	}

	rkBob, err := bob.ObtainRoomKey(ctx, "party-1")
	if err != nil {
		t.Fatalf("bob obtain: %v", err)
	}

	if rkAlice == nil || rkBob.Export() != rkAlice.Export() {
		t.Fatal("both devices must converge on the same room key")
	}

	// Four ensure calls raced for two recipient slots; insert-if-absent
	// admitted exactly one entry per slot.
	calls, inserts := base.SealedKeyWrites()
	if calls != 4 {
		t.Fatalf("expected 4 ensure calls, got %d", calls)
	}
	if inserts != 2 {
		t.Fatalf("expected one stored entry per recipient, got %d inserts", inserts)
	}
}

// interleavedStore makes its session's remote-fetch check miss, then runs
// beforePropose once ahead of the session's first sealed-key write.
type interleavedStore struct {
	*memstore.MemStore
	blinded       bool
	beforePropose func()
	once          sync.Once
}

func (s *interleavedStore) GetSealedKey(ctx context.Context, partyID, userID string) (*model.SealedRoomKeyEntry, error) {
	if !s.blinded {
		s.blinded = true
		return nil, nil
	}
	return s.MemStore.GetSealedKey(ctx, partyID, userID)
}

func (s *interleavedStore) EnsureSealedKey(ctx context.Context, entry *model.SealedRoomKeyEntry) error {
	if s.beforePropose != nil {
		s.once.Do(s.beforePropose)
	}
	return s.MemStore.EnsureSealedKey(ctx, entry)
}
