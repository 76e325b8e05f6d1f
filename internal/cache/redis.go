// Package cache keeps hot document state and presence membership in Redis
// so a restarted service warm-starts and peers can see who is online.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotTTL  = 24 * time.Hour
	heartbeatTTL = 2 * time.Minute
)

func docKey(docID string) string  { return "doc:snapshot:" + docID }
func roomKey(docID string) string { return "presence:room:" + docID }

func memberKey(docID, clientID string) string {
	return "presence:member:" + docID + ":" + clientID
}

// Client wraps a Redis connection with the document and presence schema.
type Client struct {
	rdb *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetSnapshot caches a document's content and revision.
func (c *Client) SetSnapshot(ctx context.Context, docID string, content string, revision uint64) error {
	return c.rdb.HSet(ctx, docKey(docID),
		"content", content,
		"revision", revision,
	).Err()
}

// GetSnapshot returns a cached document. A missing document is an error;
// callers fall back to the store.
func (c *Client) GetSnapshot(ctx context.Context, docID string) (string, uint64, error) {
	fields, err := c.rdb.HGetAll(ctx, docKey(docID)).Result()
	if err != nil {
		return "", 0, fmt.Errorf("cache: get snapshot: %w", err)
	}
	if len(fields) == 0 {
		return "", 0, fmt.Errorf("cache: no snapshot for %s", docID)
	}
	revision, err := strconv.ParseUint(fields["revision"], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("cache: bad revision for %s: %w", docID, err)
	}
	return fields["content"], revision, nil
}

// AddMember marks a client as present in a document with a heartbeat TTL.
func (c *Client) AddMember(ctx context.Context, docID, clientID string) error {
	pipe := c.rdb.Pipeline()
	pipe.SAdd(ctx, roomKey(docID), clientID)
	pipe.Set(ctx, memberKey(docID, clientID), "1", heartbeatTTL)
	pipe.Expire(ctx, docKey(docID), snapshotTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveMember drops a client from a document's presence set.
func (c *Client) RemoveMember(ctx context.Context, docID, clientID string) error {
	pipe := c.rdb.Pipeline()
	pipe.SRem(ctx, roomKey(docID), clientID)
	pipe.Del(ctx, memberKey(docID, clientID))
	_, err := pipe.Exec(ctx)
	return err
}

// Members lists the clients currently present in a document.
func (c *Client) Members(ctx context.Context, docID string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, roomKey(docID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: members: %w", err)
	}
	return members, nil
}
