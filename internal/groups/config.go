// Package groups provides typed per-chat configuration parsed once at the
// store boundary, with defined defaults for absent or malformed values.
package groups

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"modguard/internal/store"
)

const (
	// DefaultFloodLimit applies when flood_limit is absent, malformed or
	// non-positive.
	DefaultFloodLimit = 5
	// DefaultWelcomeText greets joining members when no template is set.
	DefaultWelcomeText = "Welcome, {first}!"
	// DefaultGoodbyeText sees leaving members off when no template is set.
	DefaultGoodbyeText = "Goodbye, {first}!"

	cacheSize = 1024
	cacheTTL  = 5 * time.Second
)

// Config is one chat's moderation settings.
type Config struct {
	WelcomeOn   bool
	WelcomeText string
	GoodbyeOn   bool
	GoodbyeText string
	FloodLimit  int
	LogChannel  int64 // 0 when unset
}

// Loader reads group configuration through a short-TTL cache. Ban membership
// is deliberately not part of Config: Banned always reads through to the
// store (a cached "not banned" would be a correctness bug, not staleness).
type Loader struct {
	store  store.Store
	cache  *expirable.LRU[int64, Config]
	logger *zap.Logger
}

// NewLoader creates a Loader over st.
func NewLoader(st store.Store, logger *zap.Logger) *Loader {
	return &Loader{
		store:  st,
		cache:  expirable.NewLRU[int64, Config](cacheSize, nil, cacheTTL),
		logger: logger,
	}
}

// Config returns the chat's settings. A failed store read degrades to
// defaults with greetings enabled, logs a warning and does not propagate.
func (l *Loader) Config(ctx context.Context, chatID int64) Config {
	if cfg, ok := l.cache.Get(chatID); ok {
		return cfg
	}

	raw, err := l.store.Get(ctx, GroupPath(chatID))
	if err != nil {
		l.logger.Warn("Group config read failed, using defaults",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return degradedConfig()
	}

	cfg := parseConfig(raw)
	l.cache.Add(chatID, cfg)
	return cfg
}

// Invalidate drops the cached entry after an admin mutation.
func (l *Loader) Invalidate(chatID int64) {
	l.cache.Remove(chatID)
}

// Banned reports blacklist membership, reading through to the store on
// every call.
func (l *Loader) Banned(ctx context.Context, chatID, userID int64) (bool, error) {
	raw, err := l.store.Get(ctx, BlacklistPath(chatID, userID))
	if err != nil {
		return false, err
	}
	return raw != nil && cast.ToBool(raw), nil
}

// GroupPath returns the store path of a chat's settings subtree.
func GroupPath(chatID int64) string {
	return "groups/" + strconv.FormatInt(chatID, 10)
}

// BlacklistPath returns the store path of one blacklist entry.
func BlacklistPath(chatID, userID int64) string {
	return GroupPath(chatID) + "/blacklist/" + strconv.FormatInt(userID, 10)
}

// parseConfig coerces the loosely-typed store payload into Config. Absent
// toggles stay off; a malformed flood limit falls back to the default.
func parseConfig(raw any) Config {
	cfg := Config{
		WelcomeText: DefaultWelcomeText,
		GoodbyeText: DefaultGoodbyeText,
		FloodLimit:  DefaultFloodLimit,
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return cfg
	}

	cfg.WelcomeOn = cast.ToBool(fields["welcome_on"])
	cfg.GoodbyeOn = cast.ToBool(fields["goodbye_on"])

	if s := cast.ToString(fields["welcome_text"]); s != "" {
		cfg.WelcomeText = s
	}
	if s := cast.ToString(fields["goodbye_text"]); s != "" {
		cfg.GoodbyeText = s
	}

	if limit := cast.ToInt(fields["flood_limit"]); limit >= 1 {
		cfg.FloodLimit = limit
	}

	if ch, err := cast.ToInt64E(fields["log_channel"]); err == nil {
		cfg.LogChannel = ch
	}

	return cfg
}

// degradedConfig is the ConfigUnavailable fallback: defaults with greetings
// failing open.
func degradedConfig() Config {
	return Config{
		WelcomeOn:   true,
		WelcomeText: DefaultWelcomeText,
		GoodbyeOn:   true,
		GoodbyeText: DefaultGoodbyeText,
		FloodLimit:  DefaultFloodLimit,
	}
}
