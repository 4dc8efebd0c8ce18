package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"vibe_chat/internal/model"
	deviceRepo "vibe_chat/internal/repository/device"
	messageRepo "vibe_chat/internal/repository/message"
	partyRepo "vibe_chat/internal/repository/party"
	sealedkeyRepo "vibe_chat/internal/repository/sealedkey"
	"vibe_chat/internal/utils/log"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultPageSize  = 50
	maxPageSize      = 200
	maxCiphertextLen = 8192
	nonceLen         = 12
	sendMinInterval  = time.Second
)

type (
	HttpServer struct {
		addr string

		devices    *deviceRepo.DeviceRepo
		sealedKeys *sealedkeyRepo.SealedKeyRepo
		parties    *partyRepo.PartyRepo
		messages   *messageRepo.MessageRepo

		cache   *MessageCache
		hub     *Hub
		limiter *rateLimiter
	}
)

func NewHttpServer(
	addr string,
	devices *deviceRepo.DeviceRepo,
	sealedKeys *sealedkeyRepo.SealedKeyRepo,
	parties *partyRepo.PartyRepo,
	messages *messageRepo.MessageRepo,
	cache *MessageCache,
) *HttpServer {
	return &HttpServer{
		addr:       addr,
		devices:    devices,
		sealedKeys: sealedKeys,
		parties:    parties,
		messages:   messages,
		cache:      cache,
		hub:        NewHub(),
		limiter:    newRateLimiter(sendMinInterval),
	}
}

func (s *HttpServer) Run() error {
	r := mux.NewRouter()

	r.HandleFunc("/devices", s.PutDevice()).Methods(http.MethodPut)
	r.HandleFunc("/devices/{userID}/{label}", s.GetDevice()).Methods(http.MethodGet)

	r.HandleFunc("/parties/{partyID}/keys", s.EnsureSealedKey()).Methods(http.MethodPost)
	r.HandleFunc("/parties/{partyID}/keys/{userID}", s.GetSealedKey()).Methods(http.MethodGet)

	r.HandleFunc("/parties/{partyID}/members", s.AddMember()).Methods(http.MethodPost)
	r.HandleFunc("/parties/{partyID}/members", s.ListMembers()).Methods(http.MethodGet)

	r.HandleFunc("/parties/{partyID}/messages", s.SendMessage()).Methods(http.MethodPost)
	r.HandleFunc("/parties/{partyID}/messages", s.RecentMessages()).Methods(http.MethodGet)
	r.HandleFunc("/parties/{partyID}/subscribe", s.HandleSubscribe()).Methods(http.MethodGet)

	log.Info("relay listening", zap.String("addr", s.addr))
	return http.ListenAndServe(s.addr, r)
}

func (s *HttpServer) PutDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec model.DeviceRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if rec.UserID == "" || rec.DeviceLabel == "" || rec.PublicKeySPKI == "" || rec.ID == "" {
			http.Error(w, "missing fields", http.StatusBadRequest)
			return
		}

		if err := s.devices.Upsert(r.Context(), &rec); err != nil {
			log.Error("upsert device failed", zap.Error(err))
			http.Error(w, "upsert device failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) GetDevice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		rec, err := s.devices.GetByUserLabel(r.Context(), vars["userID"], vars["label"])
		if err != nil {
			log.Error("get device failed", zap.Error(err))
			http.Error(w, "get device failed", http.StatusInternalServerError)
			return
		}
		if rec == nil {
			http.Error(w, "device not found", http.StatusNotFound)
			return
		}
		writeJSON(w, rec)
	}
}

func (s *HttpServer) EnsureSealedKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID := mux.Vars(r)["partyID"]

		var entry model.SealedRoomKeyEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		entry.PartyID = partyID
		if entry.UserID == "" || entry.EncryptedRoomKey == "" || entry.SenderPublicKeySPKI == "" {
			http.Error(w, "missing fields", http.StatusBadRequest)
			return
		}

		if err := s.sealedKeys.Ensure(r.Context(), &entry); err != nil {
			log.Error("ensure sealed key failed", zap.Error(err))
			http.Error(w, "ensure sealed key failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) GetSealedKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		entry, err := s.sealedKeys.Get(r.Context(), vars["partyID"], vars["userID"])
		if err != nil {
			log.Error("get sealed key failed", zap.Error(err))
			http.Error(w, "get sealed key failed", http.StatusInternalServerError)
			return
		}
		if entry == nil {
			http.Error(w, "sealed key not found", http.StatusNotFound)
			return
		}
		writeJSON(w, entry)
	}
}

func (s *HttpServer) AddMember() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID := mux.Vars(r)["partyID"]

		var m model.PartyMember
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil || m.UserID == "" {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		if err := s.parties.AddMember(r.Context(), partyID, m.UserID); err != nil {
			log.Error("add member failed", zap.Error(err))
			http.Error(w, "add member failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) ListMembers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID := mux.Vars(r)["partyID"]
		exclude := r.URL.Query().Get("exclude")

		members, err := s.parties.ListMemberIDs(r.Context(), partyID, exclude)
		if err != nil {
			log.Error("list members failed", zap.Error(err))
			http.Error(w, "list members failed", http.StatusInternalServerError)
			return
		}
		if members == nil {
			members = []string{}
		}
		writeJSON(w, members)
	}
}

func (s *HttpServer) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID := mux.Vars(r)["partyID"]

		var msg model.WireMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		msg.PartyID = partyID

		if err := validateMessage(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.limiter.Allow(msg.UserID) {
			http.Error(w, "too many messages", http.StatusTooManyRequests)
			return
		}

		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		msg.CreatedAt = time.Now().UTC()

		if err := s.messages.Insert(r.Context(), &msg); err != nil {
			log.Error("insert message failed", zap.Error(err))
			http.Error(w, "insert message failed", http.StatusInternalServerError)
			return
		}
		if err := s.cache.Push(r.Context(), &msg); err != nil {
			log.Error("cache message failed", zap.Error(err))
		}
		s.hub.Broadcast(&msg)

		writeJSON(w, &msg)
	}
}

func (s *HttpServer) RecentMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		partyID := mux.Vars(r)["partyID"]
		limit := parseLimit(r.URL.Query().Get("limit"))

		msgs, err := s.cache.Recent(ctx, partyID, limit)
		if err != nil {
			log.Error("cache read failed", zap.Error(err))
		}
		if len(msgs) == 0 {
			msgs, err = s.messages.Recent(ctx, partyID, limit)
			if err != nil {
				log.Error("fetch messages failed", zap.Error(err))
				http.Error(w, "fetch messages failed", http.StatusInternalServerError)
				return
			}
		}
		if msgs == nil {
			msgs = []*model.WireMessage{}
		}
		writeJSON(w, msgs)
	}
}

func (s *HttpServer) HandleSubscribe() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		partyID := mux.Vars(r)["partyID"]

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "failed to upgrade", http.StatusInternalServerError)
			return
		}

		s.hub.Add(partyID, conn)
		go func() {
			// Subscribers never send; the read loop only detects closure.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					log.Debug("subscriber web socket closed", zap.Error(err))
					s.hub.Remove(partyID, conn)
					conn.Close()
					return
				}
			}
		}()
	}
}

// validateMessage checks the opaque wire fields without ever decrypting:
// the nonce must decode to exactly 12 bytes, and the ciphertext is bounded.
func validateMessage(msg *model.WireMessage) error {
	if msg.UserID == "" || msg.Ciphertext == "" || msg.Nonce == "" {
		return errMissingFields
	}
	if len(msg.Ciphertext) > maxCiphertextLen {
		return errMessageTooLong
	}
	nonce, err := base64.StdEncoding.DecodeString(msg.Nonce)
	if err != nil || len(nonce) != nonceLen {
		return errBadNonce
	}
	return nil
}

func parseLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

var (
	errMissingFields  = errors.New("missing fields")
	errMessageTooLong = errors.New("message too long")
	errBadNonce       = errors.New("nonce must be 12 bytes base64")
)
