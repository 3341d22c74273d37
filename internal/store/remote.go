package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// RemoteStore implements Store against a hearth server over HTTP, with
// snapshots arriving on the /api/ws websocket. The engine runs unchanged
// in or out of process.
//
// Author fields in Create's payload are ignored by the server: it stamps
// the principal resolved from the bearer token, so a client cannot write
// under someone else's identity.
type RemoteStore struct {
	baseURL string
	token   string
	client  *http.Client
	dialer  *websocket.Dialer
}

// NewRemoteStore points at a server base URL, e.g. "http://127.0.0.1:8080".
func NewRemoteStore(baseURL, token string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// wsEnvelope mirrors the server's outbound websocket frame.
type wsEnvelope struct {
	Type    string   `json:"type"`
	Records []Record `json:"records"`
	Error   string   `json:"error"`
}

// SubscribeOrdered dials the websocket feed. A transport failure ends the
// subscription terminally; retry policy belongs to the caller.
func (s *RemoteStore) SubscribeOrdered(collection, orderKey string) (Subscription, error) {
	if collection != MessagesCollection {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
	if orderKey != OrderByTimestamp {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOrder, orderKey)
	}

	wsURL := strings.Replace(s.baseURL, "http", "ws", 1) + "/api/ws"
	conn, _, err := s.dialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial feed: %w", err)
	}

	sub := newSubscription(func(string) { _ = conn.Close() })
	go func() {
		for {
			var env wsEnvelope
			if err := conn.ReadJSON(&env); err != nil {
				// A read error after Close is the close itself, not a
				// transport failure; terminate is a no-op then.
				sub.terminate(fmt.Errorf("feed transport: %w", err))
				return
			}
			switch env.Type {
			case "snapshot":
				sub.deliver(env.Records)
			case "error":
				sub.terminate(errors.New(env.Error))
				_ = conn.Close()
				return
			}
		}
	}()
	return sub, nil
}

// List fetches the current snapshot.
func (s *RemoteStore) List(ctx context.Context, collection string) ([]Record, error) {
	if collection != MessagesCollection {
		return nil, fmt.Errorf("unknown collection %q", collection)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/messages", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.remoteError(resp)
	}
	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return records, nil
}

// Create posts the message body; id and timestamp come back from the
// server's clock, never from here.
func (s *RemoteStore) Create(ctx context.Context, collection string, fields Fields) (string, error) {
	if collection != MessagesCollection {
		return "", fmt.Errorf("unknown collection %q", collection)
	}

	payload, err := json.Marshal(map[string]string{
		"body":        fields.Body,
		"replyTarget": fields.ReplyTarget,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", s.remoteError(resp)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	return created.ID, nil
}

// DeleteByID issues the delete; the server re-checks authorship against
// the bearer principal, actorID is advisory here.
func (s *RemoteStore) DeleteByID(ctx context.Context, collection, id, _ string) error {
	if collection != MessagesCollection {
		return fmt.Errorf("unknown collection %q", collection)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/api/messages/"+id, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrNotAuthor
	default:
		return s.remoteError(resp)
	}
}

// Close is a no-op; each subscription owns its connection.
func (s *RemoteStore) Close() error {
	return nil
}

func (s *RemoteStore) remoteError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return fmt.Errorf("server %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
