// Package core wires the store, caches, merge engine, controller and
// analyzer into one explicitly passed context.
package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/analyzer"
	"github.com/sw33tLie/tabscope/pkg/browser"
	"github.com/sw33tLie/tabscope/pkg/cache"
	"github.com/sw33tLie/tabscope/pkg/controller"
	"github.com/sw33tLie/tabscope/pkg/errs"
	"github.com/sw33tLie/tabscope/pkg/grouping"
	"github.com/sw33tLie/tabscope/pkg/merge"
	"github.com/sw33tLie/tabscope/pkg/model"
	"github.com/sw33tLie/tabscope/pkg/storage"
)

// Config is the decoded application configuration.
type Config struct {
	DB         DBConfig          `mapstructure:"db"`
	Batch      BatchConfig       `mapstructure:"batch"`
	Cache      cache.Config      `mapstructure:"cache"`
	Controller controller.Config `mapstructure:"controller"`
	Browsers   []browser.Config  `mapstructure:"browsers"`
	AI         analyzer.Config   `mapstructure:"ai"`
	Grouping   grouping.Options  `mapstructure:"grouping"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type BatchConfig struct {
	ChunkSize  int           `mapstructure:"chunk_size"`
	Atomicity  string        `mapstructure:"atomicity"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

func DefaultConfig() Config {
	return Config{
		Batch: BatchConfig{
			ChunkSize:  storage.DefaultChunkSize,
			Atomicity:  string(storage.AtomicityBestEffort),
			MaxRetries: storage.DefaultMaxRetries,
			RetryDelay: 50 * time.Millisecond,
		},
		Cache:      cache.DefaultConfig(),
		Controller: controller.DefaultConfig(),
		Browsers:   []browser.Config{{Type: string(model.BrowserChrome), CDPURL: browser.DefaultCDPURL}},
		Grouping:   grouping.DefaultOptions(),
	}
}

// ContentFetcher downloads a page for analysis or archiving.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (model.PageContent, error)
}

type Option func(*options)

type options struct {
	connectors []browser.Connector
	analyzer   analyzer.Analyzer
	fetcher    ContentFetcher
	now        func() time.Time
	newID      func() string
}

// WithConnectors replaces the connectors built from Config.Browsers.
func WithConnectors(conns ...browser.Connector) Option {
	return func(o *options) { o.connectors = conns }
}

func WithAnalyzer(a analyzer.Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

func WithFetcher(f ContentFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

// Core owns every long-lived component. Build one with New and release it
// with Close.
type Core struct {
	cfg Config

	Store      *storage.DB
	Cache      *cache.Manager
	Engine     *merge.Engine
	Controller *controller.Controller
	Analyzer   analyzer.Analyzer

	fetcher    ContentFetcher
	connectors []browser.Connector
	now        func() time.Time
	newID      func() string

	// serialises read-modify-write of pages so concurrent observations of
	// one url cannot create two pages
	observeMu sync.Mutex
	fills     fillGuard
}

func New(cfg Config, opts ...Option) (*Core, error) {
	o := options{now: model.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}

	atomicity, err := storage.ParseAtomicity(cfg.Batch.Atomicity)
	if err != nil {
		return nil, err
	}
	dbPath, err := utils.GetAbsDBPath(cfg.DB.Path)
	if err != nil {
		return nil, errs.New(errs.CodeConfiguration, "resolving database path", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errs.New(errs.CodeIO, "creating database directory", err)
	}
	store, err := storage.Open(dbPath,
		storage.WithChunkSize(cfg.Batch.ChunkSize),
		storage.WithAtomicity(atomicity),
		storage.WithRetries(cfg.Batch.MaxRetries, cfg.Batch.RetryDelay),
		storage.WithClock(o.now),
	)
	if err != nil {
		return nil, err
	}

	c := &Core{
		cfg:        cfg,
		Store:      store,
		Cache:      cache.NewManager(cfg.Cache, cache.WithClock(o.now)),
		Engine:     merge.New(merge.WithClock(o.now), merge.WithIDGenerator(o.newID)),
		Controller: controller.New(cfg.Controller, controller.WithClock(o.now), controller.WithIDGenerator(o.newID), controller.WithLogger(utils.Log)),
		fetcher:    o.fetcher,
		now:        o.now,
		newID:      o.newID,
	}

	c.Analyzer = o.analyzer
	if c.Analyzer == nil {
		if c.Analyzer, err = analyzer.New(cfg.AI); err != nil {
			store.Close()
			return nil, err
		}
	}
	if c.fetcher == nil {
		c.fetcher = browser.NewFetcher(nil)
	}

	c.connectors = o.connectors
	if c.connectors == nil {
		for _, bc := range cfg.Browsers {
			conn, err := browser.New(bc)
			if err != nil {
				if errs.Is(err, errs.CodeUnsupported) {
					utils.Log.Warnf("Skipping browser %s: %v", bc.Type, err)
					continue
				}
				store.Close()
				return nil, err
			}
			c.connectors = append(c.connectors, conn)
		}
	}
	for _, conn := range c.connectors {
		c.Controller.Register(conn)
	}
	return c, nil
}

// Close disconnects every browser and closes the store.
func (c *Core) Close() error {
	for _, conn := range c.connectors {
		if err := conn.Disconnect(); err != nil {
			utils.Log.Debugf("disconnecting %s: %v", conn.BrowserType(), err)
		}
	}
	c.Cache.Clear()
	return c.Store.Close()
}

func (c *Core) Config() Config { return c.cfg }

func (c *Core) Connectors() []browser.Connector {
	out := make([]browser.Connector, len(c.connectors))
	copy(out, c.connectors)
	return out
}

func (c *Core) Connector(bt model.BrowserType) (browser.Connector, error) {
	for _, conn := range c.connectors {
		if conn.BrowserType() == bt {
			return conn, nil
		}
	}
	return nil, errs.Newf(errs.CodeConfiguration, "no connector configured for %s", bt)
}
