package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/groupwarden/groupwarden/lockmod/bridge"
	"github.com/groupwarden/groupwarden/lockmod/cachestore"
	"github.com/groupwarden/groupwarden/lockmod/consumer"
	"github.com/groupwarden/groupwarden/lockmod/countstore"
	"github.com/groupwarden/groupwarden/lockmod/engine"
	"github.com/groupwarden/groupwarden/lockmod/policystore"
	"github.com/groupwarden/groupwarden/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// wait before re-dialing the gateway after the connection drops
var reconnectDelay = 5 * time.Second

type Server struct {
	logger    *slog.Logger
	engine    *engine.Engine
	persister *policystore.Persister
	bridgeCfg bridge.Config
	config    Config
}

type Config struct {
	BridgeHost           string
	Session              json.RawMessage
	AdminID              string
	SnapshotPath         string
	RedisURL             string
	Parallelism          int
	FlushInterval        time.Duration
	CommandMarker        string
	SlackWebhookURL      string
	BridgeRateLimit      float64
	QuotaCorrectionsHour int
	Logger               *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if _, err := util.WebsocketURL(config.BridgeHost, "/"); err != nil {
		return nil, &ConfigError{Field: "bridge-host", Err: err}
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var sink policystore.Sink
	if config.RedisURL != "" {
		// each store checks its own redis connection up front
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, engine.DefaultDedupeTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh

		rs, err := policystore.NewRedisSink(config.RedisURL, "policy")
		if err != nil {
			return nil, fmt.Errorf("initializing redis policy sink: %v", err)
		}
		sink = rs
		logger.Info("using redis for counters, dedupe cache and policy snapshots")
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, engine.DefaultDedupeTTL)
		sink = policystore.NewFileSink(config.SnapshotPath)
		logger.Info("using local policy snapshot file", "path", config.SnapshotPath)
	}

	persister := policystore.NewPersister(policystore.NewStore(), sink, logger)

	var notifier engine.Notifier
	if config.SlackWebhookURL != "" {
		notifier = engine.NewSlackNotifier(config.SlackWebhookURL)
	}

	eng := engine.Engine{
		Logger:               logger,
		Policy:               persister,
		AdminID:              config.AdminID,
		CommandMarker:        config.CommandMarker,
		Retry:                engine.DefaultRetryPolicy,
		Counters:             counters,
		Cache:                cache,
		Notifier:             notifier,
		QuotaCorrectionsHour: config.QuotaCorrectionsHour,
	}

	s := &Server{
		logger:    logger,
		engine:    &eng,
		persister: persister,
		bridgeCfg: bridge.Config{
			Host:      config.BridgeHost,
			Session:   config.Session,
			RateLimit: config.BridgeRateLimit,
			Logger:    logger,
		},
		config: config,
	}
	return s, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Loads policy, then runs the gateway consumer and the periodic snapshot flush until ctx is cancelled or the session is rejected.
func (s *Server) Run(ctx context.Context) error {
	s.persister.Load(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.persister.Run(gctx, s.config.FlushInterval)
	})
	g.Go(func() error {
		return s.runBridge(gctx)
	})
	return g.Wait()
}

// Maintains the gateway connection, re-dialing when it drops. Only a rejected session is fatal.
func (s *Server) runBridge(ctx context.Context) error {
	for {
		client, err := bridge.Dial(ctx, s.bridgeCfg)
		if errors.Is(err, bridge.ErrSessionRejected) {
			return &ConfigError{Field: "session-file", Err: err}
		}
		if err != nil {
			s.logger.Error("failed to connect to gateway", "err", err)
		} else {
			// the consumer drains in-flight occurrences before returning, so swapping the client is safe
			s.engine.Client = client
			c := consumer.Consumer{
				Engine:      s.engine,
				Source:      client,
				Parallelism: s.config.Parallelism,
				Logger:      s.logger,
			}
			err = c.Run(ctx)
			_ = client.Close()
			if err == nil {
				return nil
			}
			s.logger.Warn("gateway stream ended", "err", err, "cause", client.Err(), "lastTimestamp", c.LastTimestamp())
		}
		if err := util.SleepContext(ctx, reconnectDelay); err != nil {
			return nil
		}
	}
}
