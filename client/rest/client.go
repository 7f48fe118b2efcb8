// Package rest wraps the two REST collaborators the chat core consumes:
// the partitioned room list (with server-reported unread counters) and
// per-room message history. Both are one-shot fetches; live updates
// arrive only over the socket.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nasif-muhamed/LearNerd-sub001/auth"
	"github.com/nasif-muhamed/LearNerd-sub001/domain/chat"
)

var (
	// ErrRoomListFetch is returned when a room partition cannot be loaded.
	ErrRoomListFetch = errors.New("rest: room list fetch failed")
	// ErrHistoryFetch is returned when a room's history cannot be loaded.
	// Scoped to that room only; the catalog and other rooms are unaffected.
	ErrHistoryFetch = errors.New("rest: history fetch failed")
)

// RoomService lists rooms of one partition (one_to_one or group).
type RoomService interface {
	Rooms(ctx context.Context, roomType chat.RoomType) ([]chat.Room, error)
}

// HistoryService fetches a room's message history.
type HistoryService interface {
	History(ctx context.Context, roomID string) ([]chat.Message, error)
}

// Client talks to the chat REST API over HTTP with bearer auth.
type Client struct {
	baseURL string
	tokens  auth.TokenSource
	http    *http.Client
}

// NewClient creates a client against baseURL (e.g. "http://localhost:3000").
func NewClient(baseURL string, tokens auth.TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type roomsResponse struct {
	Rooms []chat.Room `json:"rooms"`
}

// Rooms implements RoomService.
func (c *Client) Rooms(ctx context.Context, roomType chat.RoomType) ([]chat.Room, error) {
	var out roomsResponse
	path := "/api/v1/rooms?room_type=" + url.QueryEscape(string(roomType))
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomListFetch, err)
	}
	return out.Rooms, nil
}

type historyResponse struct {
	Messages []chat.Message `json:"messages"`
}

// History implements HistoryService.
func (c *Client) History(ctx context.Context, roomID string) ([]chat.Message, error) {
	var out historyResponse
	path := "/api/v1/rooms/" + url.PathEscape(roomID) + "/messages"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryFetch, err)
	}
	return out.Messages, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
