package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultHTTPAddr   = ":8080"
	defaultNewsFeed   = "https://feeds.content.dowjones.io/public/rss/mw_topstories"
	defaultSymbols    = "^GSPC,^DJI,^IXIC,^VIX,SPY,QQQ"
	defaultSubreddit  = "stocks"
	defaultUserAgent  = "market-pulse/1.0"
	defaultTimeoutMS  = 15000
	defaultBackoffMS  = 1000
	defaultBackoffCap = 5000
)

type Config struct {
	HTTPAddr   string
	APIBaseURL string
	RedisURL   string
	FeedsFile  string

	LogLevel  string
	LogFormat string

	FetchTimeout     time.Duration
	FetchMaxRetries  int
	FetchBackoffBase time.Duration
	FetchBackoffMax  time.Duration
	UserAgent        string

	YahooBaseURL  string
	RedditBaseURL string
	QuoteCacheTTL time.Duration

	DefaultSymbols   string
	DefaultSubreddit string
	NewsFeedURL      string
	PollingEnabled   bool
}

func Load() *Config {
	cfg := &Config{
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		FeedsFile:     strings.TrimSpace(os.Getenv("FEEDS_FILE")),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFormat:     strings.TrimSpace(os.Getenv("LOG_FORMAT")),
		YahooBaseURL:  strings.TrimSpace(os.Getenv("YAHOO_BASE_URL")),
		RedditBaseURL: strings.TrimSpace(os.Getenv("REDDIT_BASE_URL")),
	}

	cfg.HTTPAddr = stringEnv("HTTP_ADDR", defaultHTTPAddr)
	cfg.APIBaseURL = strings.TrimRight(stringEnv("API_BASE_URL", "http://localhost"+portOf(cfg.HTTPAddr)), "/")

	if cfg.RedisURL == "" {
		logrus.Warn("REDIS_URL not set, quote caching disabled")
	}

	cfg.FetchTimeout = time.Duration(intEnv("FETCH_TIMEOUT_MS", defaultTimeoutMS, 1)) * time.Millisecond
	cfg.FetchMaxRetries = intEnv("FETCH_MAX_RETRIES", 2, 0)
	cfg.FetchBackoffBase = time.Duration(intEnv("FETCH_BACKOFF_BASE_MS", defaultBackoffMS, 1)) * time.Millisecond
	cfg.FetchBackoffMax = time.Duration(intEnv("FETCH_BACKOFF_MAX_MS", defaultBackoffCap, 1)) * time.Millisecond
	if cfg.FetchBackoffMax < cfg.FetchBackoffBase {
		logrus.Warnf("FETCH_BACKOFF_MAX_MS below base, using %s", cfg.FetchBackoffBase)
		cfg.FetchBackoffMax = cfg.FetchBackoffBase
	}
	cfg.UserAgent = stringEnv("USER_AGENT", defaultUserAgent)

	cfg.QuoteCacheTTL = time.Duration(intEnv("QUOTE_CACHE_SECS", 60, 1)) * time.Second

	cfg.DefaultSymbols = stringEnv("DEFAULT_SYMBOLS", defaultSymbols)
	cfg.DefaultSubreddit = stringEnv("DEFAULT_SUBREDDIT", defaultSubreddit)
	cfg.NewsFeedURL = stringEnv("NEWS_FEED_URL", defaultNewsFeed)

	cfg.PollingEnabled = true
	if v := strings.TrimSpace(os.Getenv("POLLING_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PollingEnabled = b
		} else {
			logrus.Warnf("invalid POLLING_ENABLED=%q, keeping polling on", v)
		}
	}

	return cfg
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// intEnv returns the integer value of key, or def when unset, invalid or
// below min.
func intEnv(key string, def, min int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logrus.Warnf("invalid %s=%q, defaulting to %d", key, v, def)
		return def
	}
	return n
}

func portOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":" + addr
}
