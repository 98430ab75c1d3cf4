// Package cache stores conversion results in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf2html/internal/domain"
	"pdf2html/internal/infra/logging"
)

const (
	keyPrefix = "pdf2html:"
	opTimeout = time.Second
)

// Results is a Redis-backed result cache. A nil *Results is a valid,
// always-missing cache.
type Results struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a cache on rdb. A nil client yields nil.
func New(rdb *redis.Client, ttl time.Duration) *Results {
	if rdb == nil {
		return nil
	}
	return &Results{rdb: rdb, ttl: ttl}
}

// Key derives the cache key from the PDF bytes and the options that shape the output.
func Key(pdf []byte, opts domain.Options) string {
	h := sha256.New()
	h.Write(pdf)
	h.Write([]byte{0})
	h.Write([]byte(opts.Embed))
	h.Write([]byte(strconv.FormatFloat(opts.Zoom, 'f', 3, 64)))
	h.Write([]byte(strconv.Itoa(opts.FirstPage)))
	h.Write([]byte{'-'})
	h.Write([]byte(strconv.Itoa(opts.LastPage)))
	h.Write([]byte(strconv.FormatBool(opts.ReturnZip)))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key, or nil on miss or error.
func (r *Results) Get(ctx context.Context, key string) *domain.ConversionResponse {
	if r == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil
	}

	var resp domain.ConversionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		logging.Warn("Cached result is corrupt", "key", key, "error", err)
		return nil
	}
	logging.Info("Result cache hit", "key", key)
	return &resp
}

// Set stores resp without its request id. A non-positive TTL becomes one minute.
func (r *Results) Set(ctx context.Context, key string, resp domain.ConversionResponse) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ttl := r.ttl
	if ttl <= 0 {
		ttl = time.Minute
	}

	resp.RequestID = ""
	raw, err := json.Marshal(resp)
	if err != nil {
		logging.Warn("Result encode failed", "error", err)
		return
	}
	if err := r.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
