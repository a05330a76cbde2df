package uilock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 15 * time.Minute

// Redis shares the lock between processes logged in as the same account:
// SET NX PX with a random token, refreshed while held, released with a
// compare-and-delete script.
type Redis struct {
	rdb *redis.Client
	key string
	ttl time.Duration

	mu          sync.Mutex
	token       string
	stopRefresh context.CancelFunc
}

func NewRedis(rdb *redis.Client, key string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{rdb: rdb, key: strings.TrimSpace(key), ttl: ttl}
}

// Key builds the lock key for one account and flow.
func Key(prefix, account, flow string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		p = "taskdesk:"
	}
	return p + "lock:" + strings.TrimSpace(flow) + ":" + strings.TrimSpace(account)
}

func Token() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func (l *Redis) TryAcquire(ctx context.Context) (bool, error) {
	if l == nil || l.rdb == nil {
		return false, errors.New("redis lock 未初始化")
	}
	if l.key == "" {
		return false, errors.New("lock key 为空")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return false, nil
	}
	token, err := Token()
	if err != nil {
		return false, err
	}
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return false, err
	}
	l.token = token

	rctx, cancel := context.WithCancel(context.Background())
	l.stopRefresh = cancel
	go l.refreshLoop(rctx, token)
	return true, nil
}

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
  return 0
end
`)

func (l *Redis) refreshLoop(ctx context.Context, token string) {
	t := time.NewTicker(l.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := refreshScript.Run(ctx, l.rdb, []string{l.key}, token, l.ttl.Milliseconds()).Int64()
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("ui lock refresh failed", "key", l.key, "err", err)
				}
				continue
			}
			// PEXPIRE returns 0 when the key is gone or owned by someone else.
			if n != 1 {
				slog.Warn("ui lock lost", "key", l.key)
				l.lost(token)
				return
			}
		}
	}
}

// lost forgets token if it is still the one held, so Held stops reporting
// a lock that expired or was taken over.
func (l *Redis) lost(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != token {
		return
	}
	l.token = ""
	if l.stopRefresh != nil {
		l.stopRefresh()
		l.stopRefresh = nil
	}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *Redis) Release(ctx context.Context) error {
	if l == nil || l.rdb == nil {
		return errors.New("redis lock 未初始化")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	if l.stopRefresh != nil {
		l.stopRefresh()
		l.stopRefresh = nil
	}
	token := l.token
	l.token = ""
	_, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Int64()
	return err
}

func (l *Redis) Held() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token != ""
}
