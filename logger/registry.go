package logger

import (
	"sync"

	"github.com/rs/zerolog"
)

// Component names used across fetchguard.
const (
	ComponentFetch         = "fetch"
	ComponentCache         = "cache"
	ComponentRedis         = "redis"
	ComponentProxy         = "proxy"
	ComponentRetry         = "retry"
	ComponentBreaker       = "breaker"
	ComponentLimiter       = "ratelimiter"
	ComponentHTTP          = "httpclient"
	ComponentStatsAPI      = "statsapi"
	ComponentObservability = "observability"
	ComponentConfig        = "config"
)

// Components lists every component RegisterComponents seeds.
var Components = []string{
	ComponentFetch, ComponentCache, ComponentRedis, ComponentProxy,
	ComponentRetry, ComponentBreaker, ComponentLimiter, ComponentHTTP,
	ComponentStatsAPI, ComponentObservability, ComponentConfig,
}

var registry = struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register stores a named logger.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

func lookup(name string) (*Logger, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	l, ok := registry.loggers[name]
	return l, ok
}

// RegisterComponents registers base tagged with each fetchguard component.
// levels overrides the level per component; names outside Components are
// registered too. Unparsable levels keep base's level.
func RegisterComponents(base *Logger, levels map[string]string) {
	for _, name := range Components {
		Register(name, base.WithComponent(name).withLevelName(levels[name]))
	}
	for name, level := range levels {
		if _, ok := lookup(name); !ok {
			Register(name, base.WithComponent(name).withLevelName(level))
		}
	}
}

// Get returns the registered logger for name, or the global logger tagged
// with name.
func Get(name string) *Logger {
	if l, ok := lookup(name); ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// OrGet returns l when non-nil, otherwise Get(name).
func OrGet(l *Logger, name string) *Logger {
	if l != nil {
		return l
	}
	return Get(name)
}

// Sub derives the logger a component of l should use. A registered
// component logger wins, so per-component levels apply to injected loggers.
func Sub(l *Logger, name string) *Logger {
	if r, ok := lookup(name); ok {
		return r
	}
	if l == nil {
		return Get(name)
	}
	return l.WithComponent(name)
}

func (l *Logger) withLevelName(level string) *Logger {
	if level == "" {
		return l
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return l
	}
	return l.WithLevel(lvl)
}
