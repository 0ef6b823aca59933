// Package redis implements the link store on a single Redis instance.
//
// Layout:
//
//	link:{code}          hash   id, short_code, original_url, clicks, created_at, url_key
//	link:id:{id}         string short code
//	link:url:{sha256}    string short code
//	links:created        zset   short codes scored by created_at (unix micros)
//
// Inserts, increments and deletes run as Lua scripts, so each is applied
// atomically on the server. Scripts touch keys derived from stored values and
// therefore require a non-cluster deployment.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlinks/internal/entity"
)

const (
	linkKeyPrefix = "link:"
	idKeyPrefix   = "link:id:"
	urlKeyPrefix  = "link:url:"
	createdKey    = "links:created"
)

const (
	saveOK = iota
	saveCodeExists
	saveURLExists
)

var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[3]) == 1 then
	return 1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 2
end
redis.call('HSET', KEYS[1],
	'id', ARGV[1],
	'short_code', ARGV[2],
	'original_url', ARGV[3],
	'clicks', 0,
	'created_at', ARGV[4],
	'url_key', KEYS[2])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SET', KEYS[3], ARGV[2])
redis.call('ZADD', KEYS[4], ARGV[4], ARGV[2])
return 0
`)

var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HINCRBY', KEYS[1], 'clicks', 1)
return redis.call('HGETALL', KEYS[1])
`)

var removeScript = redis.NewScript(`
local code = redis.call('GET', KEYS[1])
if not code then
	return 0
end
local linkKey = ARGV[1] .. code
local urlKey = redis.call('HGET', linkKey, 'url_key')
redis.call('DEL', KEYS[1], linkKey)
if urlKey then
	redis.call('DEL', urlKey)
end
redis.call('ZREM', KEYS[2], code)
return 1
`)

func linkKey(shortCode string) string {
	return linkKeyPrefix + shortCode
}

func idKey(id uuid.UUID) string {
	return idKeyPrefix + id.String()
}

func urlKey(originalURL string) string {
	sum := sha256.Sum256([]byte(originalURL))
	return urlKeyPrefix + hex.EncodeToString(sum[:])
}

// storeError classifies a client error, keeping the client error in the
// message only.
func storeError(op, action string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s: %s: %w: %v", op, action, entity.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %s: %w: %v", op, action, entity.ErrStoreUnavailable, err)
}

func toEntity(fields map[string]string) (*entity.Link, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}

	clicks, err := strconv.ParseInt(fields["clicks"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid clicks: %w", err)
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}

	return &entity.Link{
		ID:          id,
		ShortCode:   fields["short_code"],
		OriginalURL: fields["original_url"],
		Clicks:      clicks,
		CreatedAt:   time.UnixMicro(createdAt).UTC(),
	}, nil
}

// pairsToMap converts a flat HGETALL script reply into a map.
func pairsToMap(vals []interface{}) map[string]string {
	m := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		k, _ := vals[i].(string)
		v, _ := vals[i+1].(string)
		m[k] = v
	}
	return m
}

type LinkRepository struct {
	client *redis.Client
	now    func() time.Time
}

type Option func(*LinkRepository)

// WithClock overrides the source of creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *LinkRepository) {
		r.now = now
	}
}

func NewLinkRepository(client *redis.Client, opts ...Option) *LinkRepository {
	r := &LinkRepository{
		client: client,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *LinkRepository) Save(ctx context.Context, id uuid.UUID, shortCode, originalURL string) (*entity.Link, error) {
	const op = "adapter.repository.redis.LinkRepository.Save"

	createdAt := r.now().UTC().Truncate(time.Microsecond)

	keys := []string{linkKey(shortCode), urlKey(originalURL), idKey(id), createdKey}
	res, err := saveScript.Run(ctx, r.client, keys, id.String(), shortCode, originalURL, createdAt.UnixMicro()).Int()
	if err != nil {
		return nil, storeError(op, "failed to store link", err)
	}

	switch res {
	case saveCodeExists:
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	case saveURLExists:
		return nil, fmt.Errorf("%s: %w", op, entity.ErrOriginalURLExists)
	}

	return &entity.Link{
		ID:          id,
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   createdAt,
	}, nil
}

func (r *LinkRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*entity.Link, error) {
	const op = "adapter.repository.redis.LinkRepository.FindByOriginalURL"

	shortCode, err := r.client.Get(ctx, urlKey(originalURL)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, storeError(op, "failed to get url index", err)
	}

	link, err := r.FindByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Hash collisions are practically impossible, but never return a foreign link.
	if link.OriginalURL != originalURL {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return link, nil
}

func (r *LinkRepository) FindByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.redis.LinkRepository.FindByShortCode"

	fields, err := r.client.HGetAll(ctx, linkKey(shortCode)).Result()
	if err != nil {
		return nil, storeError(op, "failed to get link hash", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	link, err := toEntity(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, entity.ErrStoreUnavailable, err)
	}

	return link, nil
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.redis.LinkRepository.IncrementClicks"

	vals, err := incrementScript.Run(ctx, r.client, []string{linkKey(shortCode)}).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, storeError(op, "failed to increment clicks", err)
	}

	link, err := toEntity(pairsToMap(vals))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, entity.ErrStoreUnavailable, err)
	}

	return link, nil
}

// List returns links newest first. Links removed while the list is being
// read are skipped.
func (r *LinkRepository) List(ctx context.Context) ([]*entity.Link, error) {
	const op = "adapter.repository.redis.LinkRepository.List"

	codes, err := r.client.ZRevRange(ctx, createdKey, 0, -1).Result()
	if err != nil {
		return nil, storeError(op, "failed to read creation index", err)
	}

	links := make([]*entity.Link, 0, len(codes))
	if len(codes) == 0 {
		return links, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(codes))
	_, err = r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, code := range codes {
			cmds[i] = p.HGetAll(ctx, linkKey(code))
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, "failed to read link hashes", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		link, err := toEntity(fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, entity.ErrStoreUnavailable, err)
		}
		links = append(links, link)
	}

	return links, nil
}

func (r *LinkRepository) Remove(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "adapter.repository.redis.LinkRepository.Remove"

	res, err := removeScript.Run(ctx, r.client, []string{idKey(id), createdKey}, linkKeyPrefix).Int()
	if err != nil {
		return false, storeError(op, "failed to remove link", err)
	}

	return res == 1, nil
}
