package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/sw33tLie/tabscope/internal/utils"
	"github.com/sw33tLie/tabscope/pkg/core"
	"github.com/sw33tLie/tabscope/pkg/model"
)

// setDefaults registers every scalar config key so that env overrides work
// and a fresh config file lists them.
func setDefaults() {
	d := core.DefaultConfig()

	viper.SetDefault("db.path", d.DB.Path)

	viper.SetDefault("batch.chunk_size", d.Batch.ChunkSize)
	viper.SetDefault("batch.atomicity", d.Batch.Atomicity)
	viper.SetDefault("batch.max_retries", d.Batch.MaxRetries)
	viper.SetDefault("batch.retry_delay", d.Batch.RetryDelay.String())

	viper.SetDefault("cache.page_capacity", d.Cache.PageCapacity)
	viper.SetDefault("cache.url_capacity", d.Cache.URLCapacity)
	viper.SetDefault("cache.summary_capacity", d.Cache.SummaryCapacity)
	viper.SetDefault("cache.group_capacity", d.Cache.GroupCapacity)
	viper.SetDefault("cache.page_ttl", d.Cache.PageTTL.String())
	viper.SetDefault("cache.summary_ttl", d.Cache.SummaryTTL.String())
	viper.SetDefault("cache.group_ttl", d.Cache.GroupTTL.String())

	viper.SetDefault("controller.max_history", d.Controller.MaxHistory)
	viper.SetDefault("controller.max_retries", d.Controller.MaxRetries)
	viper.SetDefault("controller.retry_delay", d.Controller.RetryDelay.String())
	viper.SetDefault("controller.verify", d.Controller.VerifyEnabled)
	viper.SetDefault("controller.verify_timeout", d.Controller.VerifyTimeout.String())
	viper.SetDefault("controller.verify_interval", d.Controller.VerifyInterval.String())

	browsers := make([]map[string]interface{}, 0, len(d.Browsers))
	for _, b := range d.Browsers {
		browsers = append(browsers, map[string]interface{}{"type": b.Type, "cdp_url": b.CDPURL})
	}
	viper.SetDefault("browsers", browsers)

	viper.SetDefault("ai.provider", "")
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")

	viper.SetDefault("grouping.min_domain_pages", d.Grouping.MinDomainPages)
	viper.SetDefault("grouping.min_category_pages", d.Grouping.MinCategoryPages)
}

func loadConfig() (core.Config, error) {
	cfg := core.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return cfg, nil
}

// openCore builds the application from the current config.
func openCore() (*core.Core, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return core.New(cfg)
}

// withWriteLock runs fn while holding the database writer lock.
func withWriteLock(ctx context.Context, fn func(c *core.Core) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lock, err := utils.NewDBLock(cfg.DB.Path)
	if err != nil {
		return err
	}
	if err := lock.Lock(ctx); err != nil {
		return err
	}
	defer lock.Unlock()

	c, err := core.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// resolvePage accepts a page id or a url.
func resolvePage(ctx context.Context, c *core.Core, arg string) (model.UnifiedPageInfo, error) {
	if strings.Contains(arg, "://") {
		return c.GetPageByURL(ctx, arg)
	}
	return c.GetPage(ctx, arg)
}
