package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash field names for the session row. Times are unix seconds; the rev
// field is absent while the session is live.
const (
	fieldID       = "id"
	fieldCred     = "cred"
	fieldIssued   = "iat"
	fieldExpires  = "exp"
	fieldActivity = "act"
	fieldRevoked  = "rev"
	fieldIP       = "ip"
	fieldUA       = "ua"
	fieldDevice   = "dev"
	fieldLocation = "loc"
)

const (
	revokeStatusNotFound int64 = 0
	revokeStatusExpired  int64 = 1
	revokeStatusRevoked  int64 = 2
	revokeStatusDone     int64 = 3
)

// revokeScript transitions a live session row to revoked, atomically with
// the liveness check. An expired row is deleted on sight together with its
// index entries. The live payload is returned flat so the caller does not
// need a second round trip.
const revokeScript = `
local data = redis.call("HGETALL", KEYS[1])
if #data == 0 then
  return {0}
end
local f = {}
for i = 1, #data, 2 do
  f[data[i]] = data[i + 1]
end

local now = tonumber(ARGV[1])
local digest = ARGV[2]
local cred_key = ARGV[3] .. f["cred"]
local id_key = ARGV[4] .. f["id"]

if tonumber(f["exp"]) <= now then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", cred_key, digest)
  redis.call("DEL", id_key)
  return {1}
end

if f["rev"] then
  return {2}
end

redis.call("HSET", KEYS[1], "rev", ARGV[1])
return {3, f["id"], f["cred"], f["iat"], f["exp"], f["act"], f["ip"], f["ua"], f["dev"], f["loc"]}
`

var revokeLua = redis.NewScript(revokeScript)

const touchScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "act", ARGV[1])
  return 1
end
return 0
`

var touchLua = redis.NewScript(touchScript)

// RedisStore implements [Store] on Redis. Each session is a hash addressed
// by refresh digest, with a per-credential set index and a session-ID
// pointer for termination by ID. Row and pointer keys carry a TTL of expiry
// plus retention as a backstop; set members are pruned by Sweep.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore creates a RedisStore. prefix namespaces every key; retention
// is how long dead rows stay readable before their TTL removes them.
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cs"
	}
	return &RedisStore{redis: client, prefix: prefix, retention: retention}
}

func (s *RedisStore) sessionKey(digest string) string {
	return s.prefix + ":s:" + digest
}

func (s *RedisStore) credKeyPrefix() string {
	return s.prefix + ":c:"
}

func (s *RedisStore) credKey(credID string) string {
	return s.credKeyPrefix() + credID
}

func (s *RedisStore) idKeyPrefix() string {
	return s.prefix + ":i:"
}

func (s *RedisStore) idKey(sessionID string) string {
	return s.idKeyPrefix() + sessionID
}

// Create persists the session and its index entries in one transaction.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt) + s.retention
	if ttl <= 0 {
		return fmt.Errorf("session already expired at create")
	}

	fields := map[string]interface{}{
		fieldID:       sess.ID,
		fieldCred:     sess.CredentialID,
		fieldIssued:   sess.IssuedAt.Unix(),
		fieldExpires:  sess.ExpiresAt.Unix(),
		fieldActivity: sess.LastActivity.Unix(),
		fieldIP:       sess.IP,
		fieldUA:       sess.UserAgent,
		fieldDevice:   sess.Device,
		fieldLocation: sess.Location,
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.sessionKey(sess.RefreshDigest)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, s.credKey(sess.CredentialID), sess.RefreshDigest)
		pipe.Set(ctx, s.idKey(sess.ID), sess.RefreshDigest, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GetByDigest loads a session row regardless of its state.
func (s *RedisStore) GetByDigest(ctx context.Context, digest string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.sessionKey(digest)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return sessionFromFields(digest, fields)
}

// RevokeByDigest runs the compare-and-revoke script. Exactly one of N
// concurrent callers for the same digest gets the session back; the rest see
// ErrRevoked.
func (s *RedisStore) RevokeByDigest(ctx context.Context, digest string, now time.Time) (*Session, error) {
	res, err := revokeLua.Run(ctx, s.redis,
		[]string{s.sessionKey(digest)},
		now.Unix(), digest, s.credKeyPrefix(), s.idKeyPrefix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	reply, ok := res.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("%w: unexpected script reply", ErrUnavailable)
	}
	status, ok := reply[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected script status", ErrUnavailable)
	}

	switch status {
	case revokeStatusNotFound:
		return nil, ErrNotFound
	case revokeStatusExpired:
		return nil, ErrExpired
	case revokeStatusRevoked:
		return nil, ErrRevoked
	case revokeStatusDone:
		if len(reply) != 10 {
			return nil, fmt.Errorf("%w: truncated script reply", ErrUnavailable)
		}
		sess, err := sessionFromReply(digest, reply[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		revokedAt := time.Unix(now.Unix(), 0)
		sess.RevokedAt = &revokedAt
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown script status %d", ErrUnavailable, status)
	}
}

// RevokeByID resolves the session-ID pointer, checks ownership and revokes.
func (s *RedisStore) RevokeByID(ctx context.Context, credID, sessionID string, now time.Time) error {
	digest, err := s.redis.Get(ctx, s.idKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	owner, err := s.redis.HGet(ctx, s.sessionKey(digest), fieldCred).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if owner != credID {
		// Do not leak that the ID exists under another credential.
		return ErrNotFound
	}

	_, err = s.RevokeByDigest(ctx, digest, now)
	return err
}

// RevokeAllForCredential revokes every live session in the credential's
// index, skipping exceptDigest. Sessions created concurrently with this call
// may be missed; callers needing certainty can invoke it again.
func (s *RedisStore) RevokeAllForCredential(ctx context.Context, credID, exceptDigest string, now time.Time) (int, error) {
	digests, err := s.redis.SMembers(ctx, s.credKey(credID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	revoked := 0
	for _, digest := range digests {
		if digest == exceptDigest {
			continue
		}
		_, err := s.RevokeByDigest(ctx, digest, now)
		switch {
		case err == nil:
			revoked++
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired), errors.Is(err, ErrRevoked):
			// Already dead; nothing to do.
		default:
			return revoked, err
		}
	}
	return revoked, nil
}

// ListActive returns the live sessions for a credential, most recently
// active first.
func (s *RedisStore) ListActive(ctx context.Context, credID string, now time.Time) ([]*Session, error) {
	digests, err := s.redis.SMembers(ctx, s.credKey(credID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sessions := make([]*Session, 0, len(digests))
	for _, digest := range digests {
		sess, err := s.GetByDigest(ctx, digest)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if sess.Live(now) {
			sessions = append(sessions, sess)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})
	return sessions, nil
}

// Touch stamps last activity on an existing row. A missing row is fine.
func (s *RedisStore) Touch(ctx context.Context, digest string, at time.Time) error {
	err := touchLua.Run(ctx, s.redis, []string{s.sessionKey(digest)}, at.Unix()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep walks the per-credential indexes and removes members whose session
// rows have aged out, deleting sets that end up empty.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	iter := s.redis.Scan(ctx, 0, s.credKeyPrefix()+"*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		digests, err := s.redis.SMembers(ctx, setKey).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		remaining := len(digests)
		for _, digest := range digests {
			exists, err := s.redis.Exists(ctx, s.sessionKey(digest)).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if exists == 0 {
				if err := s.redis.SRem(ctx, setKey, digest).Err(); err != nil {
					return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				removed++
				remaining--
			}
		}
		if remaining == 0 {
			if err := s.redis.Del(ctx, setKey).Err(); err != nil {
				return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed, nil
}

func sessionFromFields(digest string, fields map[string]string) (*Session, error) {
	sess := &Session{
		ID:            fields[fieldID],
		CredentialID:  fields[fieldCred],
		RefreshDigest: digest,
		IP:            fields[fieldIP],
		UserAgent:     fields[fieldUA],
		Device:        fields[fieldDevice],
		Location:      fields[fieldLocation],
	}

	var err error
	if sess.IssuedAt, err = parseUnixField(fields, fieldIssued); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseUnixField(fields, fieldExpires); err != nil {
		return nil, err
	}
	if sess.LastActivity, err = parseUnixField(fields, fieldActivity); err != nil {
		return nil, err
	}
	if raw, ok := fields[fieldRevoked]; ok {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt session field %s: %v", fieldRevoked, err)
		}
		at := time.Unix(secs, 0)
		sess.RevokedAt = &at
	}
	return sess, nil
}

func parseUnixField(fields map[string]string, name string) (time.Time, error) {
	raw, ok := fields[name]
	if !ok {
		return time.Time{}, fmt.Errorf("corrupt session: missing field %s", name)
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt session field %s: %v", name, err)
	}
	return time.Unix(secs, 0), nil
}

func sessionFromReply(digest string, values []interface{}) (*Session, error) {
	strs := make([]string, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected script value at %d", i)
		}
		strs[i] = str
	}
	fields := map[string]string{
		fieldID:       strs[0],
		fieldCred:     strs[1],
		fieldIssued:   strs[2],
		fieldExpires:  strs[3],
		fieldActivity: strs[4],
		fieldIP:       strs[5],
		fieldUA:       strs[6],
		fieldDevice:   strs[7],
		fieldLocation: strs[8],
	}
	return sessionFromFields(digest, fields)
}
