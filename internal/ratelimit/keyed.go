package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxKeys bounds the number of per-key buckets a KeyedLimiter keeps.
const DefaultMaxKeys = 10_000

// KeyedLimiter applies an independent TokenBucket per key (for example a
// client address). Buckets are kept in LRU order and the least recently used
// one is evicted once maxKeys is reached, so memory stays bounded under
// address churn.
type KeyedLimiter struct {
	clock    Clock
	capacity int64
	period   time.Duration
	maxKeys  int

	mu      sync.Mutex
	buckets map[string]*keyedEntry
	lru     *list.List
}

type keyedEntry struct {
	key    string
	bucket *TokenBucket
	elem   *list.Element
}

func NewKeyedLimiter(clock Clock, capacity int64, period time.Duration, maxKeys int) *KeyedLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &KeyedLimiter{
		clock:    clock,
		capacity: capacity,
		period:   period,
		maxKeys:  maxKeys,
		buckets:  make(map[string]*keyedEntry),
		lru:      list.New(),
	}
}

// Allow consumes one token from key's bucket.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.bucket(key).Allow(1)
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.buckets[key]; ok {
		l.lru.MoveToFront(e.elem)
		return e.bucket
	}

	for len(l.buckets) >= l.maxKeys {
		oldest := l.lru.Back()
		if oldest == nil {
			break
		}
		victim := oldest.Value.(*keyedEntry)
		l.lru.Remove(oldest)
		delete(l.buckets, victim.key)
	}

	e := &keyedEntry{key: key, bucket: NewTokenBucket(l.clock, l.capacity, l.period)}
	e.elem = l.lru.PushFront(e)
	l.buckets[key] = e
	return e.bucket
}
