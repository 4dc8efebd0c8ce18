package app

import (
	"context"
	"fmt"
	"sort"

	"vibe_chat/internal/model"
	"vibe_chat/internal/protocol/roomkey"
	"vibe_chat/internal/remote"
	"vibe_chat/internal/service/e2ee"
	"vibe_chat/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	pageSize      = 50
	maxMessageLen = 1000
)

type (
	// App drives one encrypted conversation: it gates send/receive on E2E
	// setup, decrypts the inbound stream, and encrypts everything outbound.
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField
		status  *tview.TextView

		session *e2ee.Session
		store   remote.Store

		partyID string
		roomKey roomkey.RoomKey

		ctx      context.Context
		e2eReady bool
		seen     map[string]bool

		stopFeed func()
	}
)

func NewApp(session *e2ee.Session, store remote.Store, partyID string) *App {
	return &App{
		app:     tview.NewApplication(),
		session: session,
		store:   store,
		partyID: partyID,
		seen:    make(map[string]bool),
	}
}

// Run performs E2E setup, loads the recent history, starts the live feed and
// hands control to the UI loop. Blocking. If setup fails the UI still opens,
// with sending disabled and a visible failure state.
func (a *App) Run(ctx context.Context) {
	a.ctx = ctx
	if err := a.setup(ctx); err != nil {
		log.Error("encryption setup failed", zap.Error(err))
		a.buildUI("encryption setup failed")
		a.runUI()
		return
	}
	a.e2eReady = true
	a.buildUI("")

	if err := a.loadHistory(ctx); err != nil {
		log.Error("load history failed", zap.Error(err))
	}

	feed, stop, err := a.store.Subscribe(ctx, a.partyID)
	if err != nil {
		log.Error("subscribe failed", zap.Error(err))
		a.status.SetText("[red]live feed unavailable[-]")
	} else {
		a.stopFeed = stop
		go a.listenOnFeed(feed)
	}

	a.runUI()
}

func (a *App) Stop() {
	if a.stopFeed != nil {
		// In-flight remote calls run to completion; a partially distributed
		// room key is a valid recoverable state.
		a.stopFeed()
	}
	a.app.Stop()
}

// setup runs the identity manager then the room key bootstrap. Both are
// hard prerequisites for the session.
func (a *App) setup(ctx context.Context) error {
	if _, err := a.session.EnsureDeviceIdentity(ctx); err != nil {
		return err
	}
	rk, err := a.session.ObtainRoomKey(ctx, a.partyID)
	if err != nil {
		return err
	}
	a.roomKey = rk
	return nil
}

// loadHistory fetches the newest-first page and reverses it to
// chronological order for display.
func (a *App) loadHistory(ctx context.Context) error {
	wires, err := a.store.RecentMessages(ctx, a.partyID, pageSize)
	if err != nil {
		return err
	}

	sort.SliceStable(wires, func(i, j int) bool {
		return wires[i].CreatedAt.Before(wires[j].CreatedAt)
	})
	for _, wire := range wires {
		a.appendMessage(a.decrypt(wire), false)
	}
	return nil
}

func (a *App) listenOnFeed(feed <-chan *model.WireMessage) {
	for wire := range feed {
		if a.seen[wire.ID] {
			continue
		}
		a.appendMessage(a.decrypt(wire), true)
	}
}

// decrypt handles one wire message independently; a failure marks just this
// message as undecryptable and never disturbs the session.
func (a *App) decrypt(wire *model.WireMessage) *model.DecryptedMessage {
	msg := &model.DecryptedMessage{
		ID:        wire.ID,
		PartyID:   wire.PartyID,
		UserID:    wire.UserID,
		CreatedAt: wire.CreatedAt,
	}
	if a.roomKey == nil || wire.Ciphertext == "" || wire.Nonce == "" {
		msg.DecryptFailed = true
		return msg
	}

	plaintext, ok := roomkey.DecryptMessage(wire.Ciphertext, wire.Nonce, a.roomKey)
	if !ok {
		msg.DecryptFailed = true
		return msg
	}
	msg.Plaintext = plaintext
	return msg
}

func (a *App) appendMessage(msg *model.DecryptedMessage, redraw bool) {
	a.seen[msg.ID] = true

	render := func() {
		if msg.DecryptFailed {
			fmt.Fprintf(a.chatbox, "[red]%s:[-] [::d]cannot decrypt[-:-:-]\n", shortID(msg.UserID))
		} else if msg.UserID == a.session.UserID() {
			fmt.Fprintf(a.chatbox, "[yellow]You:[-] %s\n", msg.Plaintext)
		} else {
			fmt.Fprintf(a.chatbox, "[green]%s:[-] %s\n", shortID(msg.UserID), msg.Plaintext)
		}
		a.chatbox.ScrollToEnd()
	}

	if redraw {
		a.app.QueueUpdateDraw(render)
	} else {
		render()
	}
}

// SendMessage encrypts and ships one message. The input text is cleared
// only on success; transport failures leave it in place for retry.
func (a *App) SendMessage(text string) error {
	if !a.e2eReady || a.roomKey == nil {
		return fmt.Errorf("encryption not ready")
	}

	ciphertext, nonce, err := roomkey.EncryptMessage(text, a.roomKey)
	if err != nil {
		return err
	}

	identity := a.session.Identity()
	err = a.store.SendMessage(a.ctx, &model.WireMessage{
		PartyID:        a.partyID,
		UserID:         a.session.UserID(),
		Ciphertext:     ciphertext,
		Nonce:          nonce,
		E2EVersion:     model.E2EVersion,
		SenderDeviceID: identity.DeviceID,
	})
	if err == remote.ErrRateLimited {
		a.setStatus("sending too fast, wait a moment")
		return nil
	}
	if err != nil {
		a.setStatus("send failed, press Enter to retry")
		return err
	}

	a.app.QueueUpdateDraw(func() {
		a.input.SetText("")
		a.status.SetText(statusReady)
	})
	return nil
}

func (a *App) setStatus(text string) {
	a.app.QueueUpdateDraw(func() {
		a.status.SetText(text)
	})
}

const statusReady = "E2E encryption active"

func (a *App) buildUI(setupError string) {
	a.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Party %s ", shortID(a.partyID)))

	a.status = tview.NewTextView().SetDynamicColors(true)
	if setupError != "" {
		a.status.SetText("[red]" + setupError + "[-], sending disabled")
	} else {
		a.status.SetText(statusReady)
	}

	a.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(maxMessageLen))
	a.input.SetBorder(true).SetTitle(" New Message ")
	if setupError != "" {
		a.input.SetDisabled(true)
	}

	a.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := a.input.GetText()
			if text == "" {
				return
			}

			go func(msg string) {
				if err := a.SendMessage(msg); err != nil {
					log.Error("send message failed", zap.Error(err))
				}
			}(text)
		}
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.status, 1, 0, false).
		AddItem(a.chatbox, 0, 1, false).
		AddItem(a.input, 3, 0, true)
	a.app.SetRoot(layout, true).SetFocus(a.input)
}

// blocking function
func (a *App) runUI() {
	if err := a.app.Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
