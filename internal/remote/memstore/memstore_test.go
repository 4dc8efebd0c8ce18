package memstore

import (
	"context"
	"testing"

	"vibe_chat/internal/model"
)

func TestEnsureSealedKeyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &model.SealedRoomKeyEntry{PartyID: "p", UserID: "u", EncryptedRoomKey: "aaa"}
	second := &model.SealedRoomKeyEntry{PartyID: "p", UserID: "u", EncryptedRoomKey: "bbb"}

	if err := s.EnsureSealedKey(ctx, first); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := s.EnsureSealedKey(ctx, second); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	got, err := s.GetSealedKey(ctx, "p", "u")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EncryptedRoomKey != "aaa" {
		t.Fatalf("second writer must not replace the first: %q", got.EncryptedRoomKey)
	}

	calls, inserts := s.SealedKeyWrites()
	if calls != 2 || inserts != 1 {
		t.Fatalf("calls=%d inserts=%d", calls, inserts)
	}
}

func TestTransportFeedAndPage(t *testing.T) {
	ctx := context.Background()
	s := New()

	feed, stop, err := s.Subscribe(ctx, "p")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := s.SendMessage(ctx, &model.WireMessage{ID: id, PartyID: "p", UserID: "u"}); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}

	// Page comes back newest first.
	page, err := s.RecentMessages(ctx, "p", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m3" || page[1].ID != "m2" {
		t.Fatalf("unexpected page: %+v", page)
	}

	// The live feed saw every send in order.
	for _, want := range []string{"m1", "m2", "m3"} {
		got := <-feed
		if got.ID != want {
			t.Fatalf("feed order: got %s want %s", got.ID, want)
		}
	}
}
