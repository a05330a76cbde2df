// Package taskcache is the local "my tasks" list. The backend offers no
// list endpoint, so submitted orders are remembered here and refreshed one by
// one against the task query API.
package taskcache

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"

	"taskdesk/domain"
	"taskdesk/store"
)

// Key is the durable key holding the whole collection as one JSON array.
const Key = "myTasks"

// Cache reads and rewrites the whole collection on every change. The mutex
// only orders writers inside this process; across processes the last writer wins.
type Cache struct {
	mu sync.Mutex
	kv store.KV
}

func New(kv store.KV) *Cache {
	return &Cache{kv: kv}
}

// load never fails: missing, unreadable or non-array data reads as empty.
func (c *Cache) load() []domain.TaskSnapshot {
	raw, ok, err := c.kv.Get(Key)
	if err != nil {
		slog.Warn("task cache: read failed", "err", err)
		return nil
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var tasks []domain.TaskSnapshot
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		slog.Warn("task cache: stored value unreadable, treating as empty", "err", err)
		return nil
	}
	return tasks
}

func (c *Cache) save(tasks []domain.TaskSnapshot) error {
	if tasks == nil {
		tasks = []domain.TaskSnapshot{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return c.kv.Set(Key, string(b))
}

// ListAll returns the tasks in stored order.
func (c *Cache) ListAll() []domain.TaskSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// SortedForDisplay returns the tasks newest first.
func (c *Cache) SortedForDisplay() []domain.TaskSnapshot {
	tasks := c.ListAll()
	slices.SortStableFunc(tasks, func(a, b domain.TaskSnapshot) int {
		return b.CreateTime.Compare(a.CreateTime)
	})
	return tasks
}

func (c *Cache) Get(orderNo string) (domain.TaskSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Find(c.load(), func(t domain.TaskSnapshot) bool {
		return t.OrderNo == orderNo
	})
}

// Upsert replaces the entry with the same orderNo or appends it.
// Progress is always derived from Status.
func (c *Cache) Upsert(task domain.TaskSnapshot) error {
	task.Progress = domain.ProgressFor(task.Status)

	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := c.load()
	_, idx, found := lo.FindIndexOf(tasks, func(t domain.TaskSnapshot) bool {
		return t.OrderNo == task.OrderNo
	})
	if found {
		tasks[idx] = task
	} else {
		tasks = append(tasks, task)
	}
	return c.save(tasks)
}

// Remove drops orderNo. Absent entries are not an error.
func (c *Cache) Remove(orderNo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := c.load()
	kept := lo.Reject(tasks, func(t domain.TaskSnapshot, _ int) bool {
		return t.OrderNo == orderNo
	})
	if len(kept) == len(tasks) {
		return nil
	}
	return c.save(kept)
}

// ApplyRemoteUpdate copies a server answer onto the cached entry. It reports
// false, and writes nothing, when orderNo is not cached.
func (c *Cache) ApplyRemoteUpdate(orderNo string, status domain.TaskStatus, fileURL, errorMsg *string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tasks := c.load()
	_, idx, found := lo.FindIndexOf(tasks, func(t domain.TaskSnapshot) bool {
		return t.OrderNo == orderNo
	})
	if !found {
		return false, nil
	}
	t := &tasks[idx]
	t.Status = status
	t.Progress = domain.ProgressFor(status)
	t.FileURL = fileURL
	t.ErrorMsg = errorMsg
	return true, c.save(tasks)
}
