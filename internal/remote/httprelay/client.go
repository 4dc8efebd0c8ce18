// Package httprelay implements remote.Store against the relay server's HTTP
// and websocket API.
package httprelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vibe_chat/internal/model"
	"vibe_chat/internal/remote"
	"vibe_chat/internal/utils/log"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

func (c *Client) GetDevice(ctx context.Context, userID, label string) (*model.DeviceRecord, error) {
	var rec model.DeviceRecord
	found, err := c.getJSON(ctx, fmt.Sprintf("/devices/%s/%s", url.PathEscape(userID), url.PathEscape(label)), &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) PutDevice(ctx context.Context, rec *model.DeviceRecord) error {
	return c.postJSON(ctx, http.MethodPut, "/devices", rec, nil)
}

func (c *Client) GetSealedKey(ctx context.Context, partyID, userID string) (*model.SealedRoomKeyEntry, error) {
	var entry model.SealedRoomKeyEntry
	found, err := c.getJSON(ctx, fmt.Sprintf("/parties/%s/keys/%s", url.PathEscape(partyID), url.PathEscape(userID)), &entry)
	if err != nil || !found {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) EnsureSealedKey(ctx context.Context, entry *model.SealedRoomKeyEntry) error {
	return c.postJSON(ctx, http.MethodPost, fmt.Sprintf("/parties/%s/keys", url.PathEscape(entry.PartyID)), entry, nil)
}

func (c *Client) ListMembers(ctx context.Context, partyID, excludeUserID string) ([]string, error) {
	path := fmt.Sprintf("/parties/%s/members?exclude=%s", url.PathEscape(partyID), url.QueryEscape(excludeUserID))
	var members []string
	if _, err := c.getJSON(ctx, path, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) SendMessage(ctx context.Context, msg *model.WireMessage) error {
	return c.postJSON(ctx, http.MethodPost, fmt.Sprintf("/parties/%s/messages", url.PathEscape(msg.PartyID)), msg, nil)
}

func (c *Client) RecentMessages(ctx context.Context, partyID string, limit int) ([]*model.WireMessage, error) {
	path := fmt.Sprintf("/parties/%s/messages?limit=%s", url.PathEscape(partyID), strconv.Itoa(limit))
	var msgs []*model.WireMessage
	if _, err := c.getJSON(ctx, path, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Subscribe opens the relay's websocket feed for a party. Messages arrive on
// the returned channel until stop is called or the connection drops.
func (c *Client) Subscribe(ctx context.Context, partyID string) (<-chan *model.WireMessage, func(), error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1)
	u := fmt.Sprintf("%s/parties/%s/subscribe", wsURL, url.PathEscape(partyID))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial feed: %w", err)
	}

	feed := make(chan *model.WireMessage, 64)
	go func() {
		defer close(feed)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Debug("feed web socket closed", zap.Error(err))
				return
			}

			var msg model.WireMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Error("unmarshal feed message failed", zap.Error(err))
				continue
			}
			feed <- &msg
		}
	}()

	stop := func() {
		conn.Close()
	}
	return feed, stop, nil
}

// getJSON returns false with no error when the relay answers 404.
func (c *Client) getJSON(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode GET %s: %w", path, err)
	}
	return true, nil
}

func (c *Client) postJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusTooManyRequests {
		return remote.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}
