package digest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/selivandex/news-digest/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func articlesWithURLs(urls ...string) []models.Article {
	articles := make([]models.Article, 0, len(urls))
	for _, url := range urls {
		articles = append(articles, models.Article{URL: url})
	}
	return articles
}

func numberedArticles(from, to int) []models.Article {
	var articles []models.Article
	for i := from; i < to; i++ {
		articles = append(articles, models.Article{URL: fmt.Sprintf("https://example.com/%d", i)})
	}
	return articles
}

func TestSeenMemory_FilterUnseen(t *testing.T) {
	m := NewSeenMemory()
	batch := articlesWithURLs("a", "b", "c")

	t.Run("fresh user sees everything", func(t *testing.T) {
		if got := m.FilterUnseen(1, batch); len(got) != 3 {
			t.Errorf("Expected 3 unseen articles, got %d", len(got))
		}
	})

	t.Run("filter is idempotent and marks nothing", func(t *testing.T) {
		first := m.FilterUnseen(1, batch)
		second := m.FilterUnseen(1, batch)
		if len(first) != len(second) {
			t.Errorf("Expected identical results, got %d and %d", len(first), len(second))
		}
		if m.Size(1) != 0 {
			t.Errorf("Expected filter to leave memory empty, got size %d", m.Size(1))
		}
	})

	t.Run("shown articles are filtered", func(t *testing.T) {
		m.MarkShown(1, articlesWithURLs("a", "c"))

		got := m.FilterUnseen(1, batch)
		if len(got) != 1 || got[0].URL != "b" {
			t.Errorf("Expected only b, got %+v", got)
		}

		m.MarkShown(1, got)
		if left := m.FilterUnseen(1, batch); len(left) != 0 {
			t.Errorf("Expected nothing after marking all, got %d", len(left))
		}
	})

	t.Run("users are independent", func(t *testing.T) {
		if got := m.FilterUnseen(2, batch); len(got) != 3 {
			t.Errorf("Expected other user to see all 3, got %d", len(got))
		}
	})
}

func TestSeenMemory_MarkShownIgnoresEmptyAndDuplicateURLs(t *testing.T) {
	m := NewSeenMemory()

	m.MarkShown(1, articlesWithURLs("a", "", "a", "b"))
	m.MarkShown(1, articlesWithURLs("b"))

	if m.Size(1) != 2 {
		t.Errorf("Expected 2 remembered URLs, got %d", m.Size(1))
	}
}

func TestSeenMemory_Expiry(t *testing.T) {
	clock := newFakeClock()
	m := NewSeenMemory(WithClock(clock.Now))
	batch := articlesWithURLs("a", "b")

	m.FilterUnseen(1, nil)
	m.MarkShown(1, batch)

	clock.Advance(2 * time.Hour)
	if got := m.FilterUnseen(1, batch); len(got) != 0 {
		t.Errorf("Expected memory to survive exactly 2h, got %d unseen", len(got))
	}

	clock.Advance(5 * time.Minute)
	if got := m.FilterUnseen(1, batch); len(got) != 2 {
		t.Errorf("Expected memory to expire after 125 minutes, got %d unseen", len(got))
	}
	if m.Size(1) != 0 {
		t.Errorf("Expected memory wiped, got size %d", m.Size(1))
	}

	// the expiry restarted the clock
	m.MarkShown(1, batch)
	clock.Advance(time.Hour)
	if got := m.FilterUnseen(1, batch); len(got) != 0 {
		t.Errorf("Expected fresh memory to hold, got %d unseen", len(got))
	}
}

func TestSeenMemory_Clear(t *testing.T) {
	clock := newFakeClock()
	m := NewSeenMemory(WithClock(clock.Now))
	batch := articlesWithURLs("a", "b")

	m.MarkShown(1, batch)
	m.MarkShown(2, batch)

	clock.Advance(90 * time.Minute)
	m.Clear(1)

	if got := m.FilterUnseen(1, batch); len(got) != 2 {
		t.Errorf("Expected cleared user to see everything again, got %d", len(got))
	}
	if got := m.FilterUnseen(2, batch); len(got) != 0 {
		t.Errorf("Expected other user unaffected, got %d", len(got))
	}

	// clear reset the clock: 90 minutes later the 2h window has not passed
	m.MarkShown(1, batch)
	clock.Advance(90 * time.Minute)
	if got := m.FilterUnseen(1, batch); len(got) != 0 {
		t.Errorf("Expected clear to restart expiry clock, got %d unseen", len(got))
	}

	m.Clear(42)
	if m.Size(42) != 0 {
		t.Errorf("Expected clearing unknown user to be harmless")
	}
}

func TestSeenMemory_Capacity(t *testing.T) {
	tests := []struct {
		name     string
		batches  [][]models.Article
		wantSize int
	}{
		{
			name:     "at capacity nothing is evicted",
			batches:  [][]models.Article{numberedArticles(0, 200)},
			wantSize: 200,
		},
		{
			name:     "201st insert evicts down to retain",
			batches:  [][]models.Article{numberedArticles(0, 200), numberedArticles(200, 201)},
			wantSize: 100,
		},
		{
			name:     "single oversized batch",
			batches:  [][]models.Article{numberedArticles(0, 350)},
			wantSize: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSeenMemory()
			for _, b := range tt.batches {
				m.MarkShown(1, b)
			}
			if m.Size(1) != tt.wantSize {
				t.Errorf("Expected size %d, got %d", tt.wantSize, m.Size(1))
			}
		})
	}
}

func TestSeenMemory_EvictsOldestFirst(t *testing.T) {
	m := NewSeenMemory()
	m.MarkShown(1, numberedArticles(0, 200))
	m.MarkShown(1, numberedArticles(200, 201))

	// URLs 0..100 were evicted, 101..200 survive
	if got := m.FilterUnseen(1, numberedArticles(0, 101)); len(got) != 101 {
		t.Errorf("Expected oldest 101 URLs evicted, got %d unseen", len(got))
	}
	if got := m.FilterUnseen(1, numberedArticles(101, 201)); len(got) != 0 {
		t.Errorf("Expected newest 100 URLs retained, got %d unseen", len(got))
	}
}

func TestSeenMemory_CustomLimits(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		retain   int
		shown    int
		expected int
	}{
		{name: "retain below capacity", capacity: 10, retain: 4, shown: 11, expected: 4},
		{name: "negative retain clamps to capacity", capacity: 50, retain: -1, shown: 51, expected: 50},
		{name: "retain above capacity clamps to capacity", capacity: 50, retain: 100, shown: 51, expected: 50},
		{name: "under capacity keeps everything", capacity: 50, retain: -1, shown: 50, expected: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSeenMemory(WithLimits(tt.capacity, tt.retain), WithTTL(time.Minute))

			m.MarkShown(1, numberedArticles(0, tt.shown))
			if m.Size(1) != tt.expected {
				t.Errorf("Expected size %d, got %d", tt.expected, m.Size(1))
			}
		})
	}
}

func TestSeenMemory_ConcurrentUsers(t *testing.T) {
	m := NewSeenMemory()

	var wg sync.WaitGroup
	for user := int64(1); user <= 8; user++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				batch := numberedArticles(i*5, i*5+5)
				unseen := m.FilterUnseen(user, batch)
				m.MarkShown(user, unseen)
			}
		}(user)
	}
	wg.Wait()

	for user := int64(1); user <= 8; user++ {
		if size := m.Size(user); size > DefaultMemoryCapacity {
			t.Errorf("User %d exceeded capacity: %d", user, size)
		}
	}
}
