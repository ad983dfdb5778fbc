// Package bus links server instances so members of one room can be spread
// across several processes. Relayed frames and presence notices travel over
// redis pub/sub; room membership lives in one redis hash per room.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/CodeRoom/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRoom             = errors.New("bus message without room")
	ErrSubscriptionClosed = errors.New("bus: subscription closed")
)

type Kind string

const (
	// KindRelay carries a code, input or cursor update.
	KindRelay Kind = "relay"
	// KindPresence carries a user-joined or user-left notice; receivers
	// follow it with a fresh member list.
	KindPresence Kind = "presence"
)

// membersTTL bounds how long entries of a crashed instance linger.
const membersTTL = 24 * time.Hour

// Message is one frame, already encoded for the wire.
type Message struct {
	Kind    Kind          `json:"kind"`
	Origin  string        `json:"origin"`
	Room    domain.RoomID `json:"room"`
	Payload []byte        `json:"payload"`
	Lossy   bool          `json:"lossy,omitempty"`
}

// Entry is a member as recorded in the shared directory.
type Entry struct {
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName"`
	Origin   string        `json:"origin"`
	JoinedAt int64         `json:"joinedAt"`
}

// Publisher is the side of the bus the relay depends on.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

// Directory is the cluster-wide member table.
type Directory interface {
	// Put records a member held by this instance, replacing any entry for
	// the same user.
	Put(ctx context.Context, room domain.RoomID, e Entry) error
	// Drop removes uid if this instance still holds it.
	Drop(ctx context.Context, room domain.RoomID, uid domain.UserID) error
	// Remote lists the members of room held by other instances.
	Remote(ctx context.Context, room domain.RoomID) ([]Entry, error)
}

type Cluster interface {
	Publisher
	Directory
}

type RedisBus struct {
	rdb    *redis.Client
	origin string
	prefix string
}

type Options struct {
	Addr   string
	DB     int
	Prefix string
	// Origin tags outgoing messages so an instance ignores its own echo.
	Origin string
}

// dropOwned deletes a hash field only while it still names this origin, so a
// user who reconnected through another instance is not removed.
var dropOwned = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if not v then return 0 end
if cjson.decode(v)['origin'] ~= ARGV[2] then return 0 end
return redis.call('HDEL', KEYS[1], ARGV[1])
`)

// NewRedisBus connects to redis and verifies connectivity
func NewRedisBus(ctx context.Context, opts Options) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "coderoom"
	}
	return &RedisBus{rdb: rdb, origin: opts.Origin, prefix: prefix}, nil
}

func (b *RedisBus) Origin() string { return b.origin }

// Publish sends a message to the redis channel for its room
func (b *RedisBus) Publish(ctx context.Context, m Message) error {
	if m.Room == "" {
		return ErrNoRoom
	}
	m.Origin = b.origin
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("bus marshal: %w", err)
	}
	return b.rdb.Publish(ctx, channel(b.prefix, m.Room), raw).Err()
}

func (b *RedisBus) Put(ctx context.Context, room domain.RoomID, e Entry) error {
	e.Origin = b.origin
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("bus marshal entry: %w", err)
	}
	key := membersKey(b.prefix, room)
	_, err = b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, string(e.UserID), raw)
		p.Expire(ctx, key, membersTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("bus put %s: %w", room, err)
	}
	return nil
}

func (b *RedisBus) Drop(ctx context.Context, room domain.RoomID, uid domain.UserID) error {
	err := dropOwned.Run(ctx, b.rdb, []string{membersKey(b.prefix, room)}, string(uid), b.origin).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("bus drop %s: %w", room, err)
	}
	return nil
}

func (b *RedisBus) Remote(ctx context.Context, room domain.RoomID) ([]Entry, error) {
	fields, err := b.rdb.HGetAll(ctx, membersKey(b.prefix, room)).Result()
	if err != nil {
		return nil, fmt.Errorf("bus members %s: %w", room, err)
	}
	return remoteEntries(b.origin, fields), nil
}

// Subscribe listens to all room channels and invokes fn for each message
// published by other instances. It returns nil when ctx is done and an error
// if redis drops the subscription.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(Message)) error {
	pubsub := b.rdb.PSubscribe(ctx, channel(b.prefix, "*"))
	defer func() { _ = pubsub.Close() }()

	log.Info().Str("module", "bus").Str("origin", b.origin).Msg("subscribed")
	return consume(ctx, b.origin, pubsub.Channel(), fn)
}

func consume(ctx context.Context, self string, ch <-chan *redis.Message, fn func(Message)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSubscriptionClosed
			}
			m, ok := accept(self, msg.Payload)
			if !ok {
				continue
			}
			fn(m)
		}
	}
}

// Close shuts down the redis connection
func (b *RedisBus) Close() { _ = b.rdb.Close() }

// accept decodes a channel payload and filters out this instance's own
// messages and garbage.
func accept(self, payload string) (Message, bool) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		log.Warn().Err(err).Str("module", "bus").Msg("bad bus payload")
		return Message{}, false
	}
	if m.Room == "" || m.Origin == self {
		return Message{}, false
	}
	if m.Kind == "" {
		m.Kind = KindRelay
	}
	return m, true
}

// remoteEntries decodes a member hash, keeping entries of other instances.
func remoteEntries(self string, fields map[string]string) []Entry {
	out := make([]Entry, 0, len(fields))
	for uid, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Str("module", "bus").Str("user", uid).Msg("bad member entry")
			continue
		}
		if e.Origin == self {
			continue
		}
		out = append(out, e)
	}
	return out
}

// channel namespacing for room pub/sub
func channel(prefix string, room domain.RoomID) string {
	return strings.Join([]string{prefix, "room", string(room)}, ":")
}

func membersKey(prefix string, room domain.RoomID) string {
	return strings.Join([]string{prefix, "members", string(room)}, ":")
}
