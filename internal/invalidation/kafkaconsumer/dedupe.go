package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type offsetDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newOffsetDedupe(size int) *offsetDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, int64](size)
	return &offsetDedupe{lru: c}
}

// seen reports whether off was already applied for key.
func (d *offsetDedupe) seen(key string, off int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(key)
	return ok && off <= last
}

func (d *offsetDedupe) mark(key string, off int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && off <= last {
		return
	}
	d.lru.Add(key, off)
}
