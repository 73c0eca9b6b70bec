// Package directory is the client for the authoritative conversation and
// message store. Real-time deltas are reconciled against it on startup, on
// reconnect, and on a periodic schedule.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Conversation is the directory's view of one conversation.
type Conversation struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	IsGroup       bool      `json:"is_group"`
	UnreadCount   int       `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Message is a persisted message snapshot, including the delivery markers
// used to seed statuses after a cold start or a gap.
type Message struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	SenderID       string   `json:"sender_id"`
	Body           string   `json:"body"`
	Sequence       int64    `json:"seq"`
	OriginTSMillis int64    `json:"ts"`
	OriginNode     string   `json:"node_id"`
	Delivered      bool     `json:"delivered"`
	ReadBy         []string `json:"read_by"`
}

// UnreadCounts is the authoritative counter set.
type UnreadCounts struct {
	Conversations map[string]int `json:"conversations"`
	Global        int            `json:"global"`
}

// Client talks to the directory over HTTP.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a directory client for the given base URL.
func NewClient(base string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return errors.Wrap(err, "encode request body")
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrapf(err, "decode %s response", path)
		}
	}
	return nil
}

// Conversations fetches the conversation list.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.get(ctx, "/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages fetches the message snapshots for a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	if err := c.get(ctx, "/conversations/"+conversationID+"/messages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCountsFetch fetches the authoritative unread counters.
func (c *Client) UnreadCountsFetch(ctx context.Context) (UnreadCounts, error) {
	var out UnreadCounts
	if err := c.get(ctx, "/unread", &out); err != nil {
		return UnreadCounts{}, err
	}
	return out, nil
}

// MarkConversationRead tells the directory the user has read everything in
// a conversation.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID string) error {
	return c.post(ctx, "/conversations/"+conversationID+"/read", nil, nil)
}

// SendMessage persists a new message and returns the stored snapshot with
// its real id.
func (c *Client) SendMessage(ctx context.Context, conversationID, body string) (Message, error) {
	var out Message
	payload := map[string]string{"body": body}
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	if err := c.post(ctx, path, payload, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}
