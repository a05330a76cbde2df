package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"taskdesk/apicode"
	"taskdesk/config"
	"taskdesk/domain"
	"taskdesk/gateway"
	"taskdesk/notify"
	"taskdesk/order"
	"taskdesk/ossstore"
	"taskdesk/poller"
	"taskdesk/recharge"
	"taskdesk/session"
	"taskdesk/store"
	"taskdesk/taskcache"
	"taskdesk/uilock"
)

type rootOptions struct {
	EnvFile string
	APIBase string

	app *app
}

func (o *rootOptions) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.EnvFile, "env-file", ".env", "optional dotenv file loaded before the environment")
	flagSet.StringVar(&o.APIBase, "api", "", "backend base URL (overrides TASKDESK_API_BASE)")
}

// app holds everything one command invocation needs.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	out      io.Writer
	rdb      *redis.Client
	durable  store.KV
	client   *gateway.Client
	sessions *session.Store
	guard    *session.Guard
	cache    *taskcache.Cache
	notifier notify.Notifier
	uploader order.Uploader

	closeOnce sync.Once
	closers   []func() error
}

func newApp(cfg config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: out}

	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init redis store failed: %w", err)
		}
		a.rdb = rdb
		a.durable = store.NewRedisKV(rdb, cfg.KeyPrefix)
		a.closers = append(a.closers, rdb.Close)
		logger.Debug("state store: redis", "addr", cfg.RedisAddr, "prefix", cfg.KeyPrefix)
	} else {
		kv, err := store.OpenSQLiteKV(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store failed: %w", err)
		}
		a.durable = kv
		a.closers = append(a.closers, kv.Close)
		logger.Debug("state store: sqlite", "path", cfg.StatePath)
	}

	client, err := gateway.New(cfg.APIBase,
		gateway.WithTimeout(cfg.HTTPTimeout),
		gateway.WithCodeTable(apicode.New(cfg.Lang)),
		gateway.WithCookieStore(a.durable),
		gateway.WithLogger(logger),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.client = client

	a.notifier = notify.Multi{&notify.Writer{W: out}, notify.Log{Logger: logger}}
	// every command is its own process, so loginWarning has to outlive it
	// for the next protected command to re-check the server session
	a.sessions = session.NewStore(a.durable, a.durable)
	a.guard = session.NewGuard(a.sessions, client, a.notifier, session.RedirectFunc(func() {
		fmt.Fprintln(out, "请先登录: taskdesk send-code <账号> && taskdesk login <账号> <验证码>")
	}))
	a.cache = taskcache.New(a.durable)

	if st, enabled, err := ossstore.NewFromEnv(); err != nil {
		if enabled {
			a.Close()
			return nil, fmt.Errorf("init oss store failed: %w", err)
		}
	} else if enabled {
		a.uploader = st
		logger.Debug("oss upload enabled")
	}
	return a, nil
}

// lock returns the submit lock for flow. With Redis it is shared by every
// process logged in as the same account.
func (a *app) lock(flow string) uilock.Lock {
	if a.rdb == nil {
		return uilock.NewMemory()
	}
	account := strings.TrimSpace(a.sessions.Load().Account)
	return uilock.NewRedis(a.rdb, uilock.Key(a.cfg.KeyPrefix, account, flow), 0)
}

func (a *app) orderFlow() *order.Flow {
	poll := poller.TaskConfig()
	poll.Interval = a.cfg.TaskPollInterval
	poll.MaxAttempts = a.cfg.TaskPollMax
	return order.NewFlow(a.guard, a.client, a.cache, a.lock("order"), order.Options{
		Poll:      poll,
		Uploader:  a.uploader,
		Notifier:  a.notifier,
		OnCaption: func(c string) { fmt.Fprintln(a.out, c) },
	})
}

func (a *app) rechargeFlow(onCreated func(string, string)) *recharge.Flow {
	poll := poller.PaymentConfig()
	poll.Interval = a.cfg.PaymentPollInterval
	poll.MaxAttempts = a.cfg.PaymentPollMax
	opts := recharge.Options{Poll: poll, Notifier: a.notifier}
	if onCreated != nil {
		opts.OnCreated = func(ps domain.PaymentSession) { onCreated(ps.PaymentNo, ps.PayURL) }
	}
	return recharge.NewFlow(a.guard, a.client, a.lock("recharge"), opts)
}

func (a *app) Close() {
	a.closeOnce.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.logger.Warn("close failed", "err", err)
			}
		}
	})
}
