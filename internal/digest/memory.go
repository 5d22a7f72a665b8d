package digest

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/news-digest/pkg/logger"
	"github.com/selivandex/news-digest/pkg/models"
)

const (
	DefaultMemoryCapacity = 200
	DefaultMemoryRetain   = 100
	DefaultMemoryTTL      = 2 * time.Hour
)

// SeenMemory remembers which article URLs were already shown to each user.
//
// Each user's memory is guarded by its own mutex; the registry mutex is held
// only while looking up or creating an entry. A user's memory is wiped when
// more than ttl has passed since it was last cleared, checked before every
// filter. When a mark pushes it above capacity, the oldest URLs in insertion
// order are evicted until retain remain.
type SeenMemory struct {
	mu       sync.Mutex
	users    map[int64]*userMemory
	capacity int
	retain   int
	ttl      time.Duration
	now      func() time.Time
}

type userMemory struct {
	mu          sync.Mutex
	urls        map[string]struct{}
	order       []string // oldest first
	lastCleared time.Time
}

// MemoryOption configures SeenMemory
type MemoryOption func(*SeenMemory)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) MemoryOption {
	return func(m *SeenMemory) {
		m.now = now
	}
}

// WithLimits sets the eviction threshold and how many URLs survive eviction
func WithLimits(capacity, retain int) MemoryOption {
	return func(m *SeenMemory) {
		if capacity > 0 {
			m.capacity = capacity
		}
		if retain >= 0 && retain <= m.capacity {
			m.retain = retain
		}
		m.retain = min(m.retain, m.capacity)
	}
}

// WithTTL sets how long a user's memory lives before it is wiped
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *SeenMemory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewSeenMemory creates new per-user seen memory
func NewSeenMemory(opts ...MemoryOption) *SeenMemory {
	m := &SeenMemory{
		users:    make(map[int64]*userMemory),
		capacity: DefaultMemoryCapacity,
		retain:   DefaultMemoryRetain,
		ttl:      DefaultMemoryTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// entry returns the user's memory, creating it on first use
func (m *SeenMemory) entry(userID int64) *userMemory {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		u = &userMemory{
			urls:        make(map[string]struct{}),
			lastCleared: m.now(),
		}
		m.users[userID] = u
	}
	return u
}

// FilterUnseen returns the articles whose URL was not shown to the user yet.
// It does not mark anything as shown.
func (m *SeenMemory) FilterUnseen(userID int64, articles []models.Article) []models.Article {
	u := m.entry(userID)

	u.mu.Lock()
	defer u.mu.Unlock()

	m.maybeExpire(userID, u)

	unseen := make([]models.Article, 0, len(articles))
	for _, article := range articles {
		if _, seen := u.urls[article.URL]; seen {
			continue
		}
		unseen = append(unseen, article)
	}

	return unseen
}

// MarkShown records the articles as delivered to the user
func (m *SeenMemory) MarkShown(userID int64, articles []models.Article) {
	if len(articles) == 0 {
		return
	}

	u := m.entry(userID)

	u.mu.Lock()
	defer u.mu.Unlock()

	for _, article := range articles {
		if article.URL == "" {
			continue
		}
		if _, seen := u.urls[article.URL]; seen {
			continue
		}
		u.urls[article.URL] = struct{}{}
		u.order = append(u.order, article.URL)
	}

	m.enforceCapacity(userID, u)
}

// Clear wipes the user's memory and restarts its expiry clock
func (m *SeenMemory) Clear(userID int64) {
	u := m.entry(userID)

	u.mu.Lock()
	defer u.mu.Unlock()

	removed := len(u.order)
	u.reset(m.now())

	logger.Info("cleared seen articles on request",
		zap.Int64("user_id", userID),
		zap.Int("removed", removed),
	)
}

// Size returns how many URLs are remembered for the user
func (m *SeenMemory) Size(userID int64) int {
	m.mu.Lock()
	u, ok := m.users[userID]
	m.mu.Unlock()
	if !ok {
		return 0
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.order)
}

// maybeExpire wipes the memory once ttl has passed since the last clear.
// Caller holds u.mu.
func (m *SeenMemory) maybeExpire(userID int64, u *userMemory) {
	now := m.now()
	if now.Sub(u.lastCleared) <= m.ttl {
		return
	}

	removed := len(u.order)
	u.reset(now)

	logger.Debug("seen articles expired",
		zap.Int64("user_id", userID),
		zap.Int("removed", removed),
	)
}

// enforceCapacity evicts oldest URLs once the memory grows past capacity.
// Caller holds u.mu.
func (m *SeenMemory) enforceCapacity(userID int64, u *userMemory) {
	if len(u.order) <= m.capacity {
		return
	}

	evict := len(u.order) - m.retain
	if evict <= 0 {
		return
	}
	for _, url := range u.order[:evict] {
		delete(u.urls, url)
	}
	u.order = append([]string(nil), u.order[evict:]...)

	logger.Debug("evicted oldest seen articles",
		zap.Int64("user_id", userID),
		zap.Int("evicted", evict),
		zap.Int("remaining", len(u.order)),
	)
}

func (u *userMemory) reset(now time.Time) {
	u.urls = make(map[string]struct{})
	u.order = nil
	u.lastCleared = now
}
