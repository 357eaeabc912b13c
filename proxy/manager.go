package proxy

import (
	"math/rand/v2"
	"sync"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/logger"
)

const (
	// smartMinRate is the success rate a proxy must beat to stay eligible
	// under the smart strategy once it has smartMinRequests requests.
	smartMinRate     = 0.1
	smartMinRequests = 10

	healthyMinRate     = 0.5
	healthyMinRequests = 5
)

// Stats is the per-endpoint performance record.
type Stats struct {
	SuccessCount  uint64  `json:"success_count"`
	FailureCount  uint64  `json:"failure_count"`
	SuccessRate   float64 `json:"success_rate"`
	TotalRequests uint64  `json:"total_requests"`
}

type counter struct {
	success uint64
	failure uint64
}

func (c *counter) total() uint64 {
	return c.success + c.failure
}

// rate is 1.0 for an untested proxy so it competes equally with proven ones.
func (c *counter) rate() float64 {
	total := c.total()
	if total == 0 {
		return 1.0
	}
	return float64(c.success) / float64(total)
}

func (c *counter) snapshot() Stats {
	return Stats{
		SuccessCount:  c.success,
		FailureCount:  c.failure,
		SuccessRate:   c.rate(),
		TotalRequests: c.total(),
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithRandSource sets the random source used by the random and smart
// strategies.
func WithRandSource(src rand.Source) Option {
	return func(m *Manager) {
		m.rng = rand.New(src)
	}
}

// Manager rotates through a proxy pool and tracks per-endpoint outcomes.
// All methods are non-blocking and safe for concurrent use.
type Manager struct {
	strategy Strategy
	log      *logger.Logger

	mu    sync.Mutex
	pool  []Identity
	stats map[string]*counter
	next  int
	rng   *rand.Rand
}

// NewManager creates a manager over a copy of pool. An unknown strategy is a
// configuration error.
func NewManager(pool []Identity, strategy Strategy, opts ...Option) (*Manager, error) {
	switch strategy {
	case StrategyRoundRobin, StrategyRandom, StrategySmart:
	case "":
		strategy = StrategyRoundRobin
	default:
		return nil, errors.Configuration("proxy.rotation", "unknown rotation strategy "+string(strategy))
	}

	m := &Manager{
		strategy: strategy,
		pool:     make([]Identity, 0, len(pool)),
		stats:    make(map[string]*counter, len(pool)),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get(logger.ComponentProxy)
	}

	for _, id := range pool {
		m.addLocked(id)
	}
	return m, nil
}

// GetProxy returns the next proxy, or false when the pool is empty.
func (m *Manager) GetProxy() (Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pool) == 0 {
		return Identity{}, false
	}

	switch m.strategy {
	case StrategyRandom:
		return m.pool[m.rng.IntN(len(m.pool))], true
	case StrategySmart:
		return m.pickSmart(), true
	default:
		if m.next >= len(m.pool) {
			m.next = 0
		}
		id := m.pool[m.next]
		m.next = (m.next + 1) % len(m.pool)
		return id, true
	}
}

// pickSmart returns the eligible proxy with the highest success rate, first
// in pool order on ties. When no proxy is eligible every record is reset
// and one is picked at random. Caller holds mu.
func (m *Manager) pickSmart() Identity {
	best := -1
	bestRate := -1.0
	for i, id := range m.pool {
		c := m.stats[id.Endpoint]
		rate := c.rate()
		if rate <= smartMinRate && c.total() >= smartMinRequests {
			continue
		}
		if rate > bestRate {
			best, bestRate = i, rate
		}
	}
	if best >= 0 {
		return m.pool[best]
	}

	for _, c := range m.stats {
		*c = counter{}
	}
	m.log.Warn("all proxies below viability threshold, statistics reset", map[string]interface{}{
		logger.FieldStrategy: string(m.strategy),
		"pool_size":          len(m.pool),
	})
	return m.pool[m.rng.IntN(len(m.pool))]
}

// ReportSuccess records a successful fetch through id. Unknown endpoints are
// ignored.
func (m *Manager) ReportSuccess(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.stats[id.Endpoint]; ok {
		c.success++
	}
}

// ReportFailure records a failed fetch through id. Unknown endpoints are
// ignored.
func (m *Manager) ReportFailure(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.stats[id.Endpoint]; ok {
		c.failure++
	}
}

// AddProxy appends id to the pool. An endpoint already in the pool keeps its
// statistics record.
func (m *Manager) AddProxy(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(id)
	m.log.Info("proxy added", map[string]interface{}{logger.FieldProxy: id.String()})
}

func (m *Manager) addLocked(id Identity) {
	m.pool = append(m.pool, id)
	if _, ok := m.stats[id.Endpoint]; !ok {
		m.stats[id.Endpoint] = &counter{}
	}
}

// RemoveProxy removes every pool entry with id's endpoint along with its
// statistics record. It reports whether anything was removed.
func (m *Manager) RemoveProxy(id Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pool[:0]
	for _, p := range m.pool {
		if p.Endpoint != id.Endpoint {
			kept = append(kept, p)
		}
	}
	removed := len(kept) != len(m.pool)
	clear(m.pool[len(kept):])
	m.pool = kept
	delete(m.stats, id.Endpoint)

	if m.next >= len(m.pool) {
		m.next = 0
	}
	if removed {
		m.log.Info("proxy removed", map[string]interface{}{logger.FieldProxy: id.String()})
	}
	return removed
}

// Stats returns a copy of every statistics record keyed by endpoint.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Stats, len(m.stats))
	for endpoint, c := range m.stats {
		out[redact(endpoint)] = c.snapshot()
	}
	return out
}

// HealthyCount returns the number of proxies with a success rate above 0.5
// over more than 5 requests.
func (m *Manager) HealthyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.stats {
		if c.rate() > healthyMinRate && c.total() > healthyMinRequests {
			n++
		}
	}
	return n
}

// Pool returns a copy of the pool in rotation order.
func (m *Manager) Pool() []Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Identity(nil), m.pool...)
}

// TotalCount returns the pool size.
func (m *Manager) TotalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}

// Enabled reports whether the pool has at least one proxy.
func (m *Manager) Enabled() bool {
	return m.TotalCount() > 0
}

// Strategy returns the rotation strategy.
func (m *Manager) Strategy() Strategy {
	return m.strategy
}

// ResetStats zeroes every statistics record.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.stats {
		*c = counter{}
	}
}
