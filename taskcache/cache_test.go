package taskcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/domain"
	"taskdesk/store"
)

func snap(orderNo string, status domain.TaskStatus, created time.Time) domain.TaskSnapshot {
	return domain.TaskSnapshot{
		OrderNo:    orderNo,
		OrderType:  domain.OrderTypeParagraphRewrite,
		Title:      "段落降重",
		Status:     status,
		CreateTime: created,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	c := New(store.NewInMemoryKV())
	now := time.Now()

	require.NoError(t, c.Upsert(snap("A", domain.TaskStatusPending, now)))
	require.NoError(t, c.Upsert(snap("A", domain.TaskStatusPending, now)))
	require.NoError(t, c.Upsert(snap("B", domain.TaskStatusProcessing, now)))

	all := c.ListAll()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].OrderNo)
	assert.Equal(t, 10, all[0].Progress)
	assert.Equal(t, 50, all[1].Progress)

	// replacing keeps the position
	require.NoError(t, c.Upsert(snap("A", domain.TaskStatusCompleted, now)))
	all = c.ListAll()
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].OrderNo)
	assert.Equal(t, 100, all[0].Progress)
}

func TestApplyRemoteUpdate(t *testing.T) {
	c := New(store.NewInMemoryKV())
	require.NoError(t, c.Upsert(snap("A", domain.TaskStatusPending, time.Now())))

	url := "https://files.example.com/a.docx"
	ok, err := c.ApplyRemoteUpdate("A", domain.TaskStatusCompleted, &url, nil)
	require.NoError(t, err)
	require.True(t, ok)

	got, found := c.Get("A")
	require.True(t, found)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.FileURL)
	assert.Equal(t, url, *got.FileURL)

	msg := "生成失败"
	ok, err = c.ApplyRemoteUpdate("A", domain.TaskStatusFailed, nil, &msg)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ = c.Get("A")
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.FileURL)
	assert.Equal(t, "生成失败", *got.ErrorMsg)
}

func TestApplyRemoteUpdateUnknownOrderIsNoop(t *testing.T) {
	kv := store.NewInMemoryKV()
	c := New(kv)
	ok, err := c.ApplyRemoteUpdate("missing", domain.TaskStatusCompleted, nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	_, stored, _ := kv.Get(Key)
	assert.False(t, stored)
}

func TestRemove(t *testing.T) {
	c := New(store.NewInMemoryKV())
	now := time.Now()
	require.NoError(t, c.Upsert(snap("A", 0, now)))
	require.NoError(t, c.Upsert(snap("B", 0, now)))

	require.NoError(t, c.Remove("A"))
	require.NoError(t, c.Remove("A"))
	require.NoError(t, c.Remove("nope"))

	all := c.ListAll()
	require.Len(t, all, 1)
	assert.Equal(t, "B", all[0].OrderNo)
}

func TestCorruptValueReadsEmpty(t *testing.T) {
	kv := store.NewInMemoryKV()
	require.NoError(t, kv.Set(Key, "{definitely not an array"))
	c := New(kv)

	assert.Empty(t, c.ListAll())
	assert.Empty(t, c.SortedForDisplay())

	// the next write starts a fresh collection
	require.NoError(t, c.Upsert(snap("A", 0, time.Now())))
	assert.Len(t, c.ListAll(), 1)
}

func TestSortedForDisplay(t *testing.T) {
	c := New(store.NewInMemoryKV())
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.Local)
	require.NoError(t, c.Upsert(snap("old", 0, base)))
	require.NoError(t, c.Upsert(snap("new", 0, base.Add(2*time.Hour))))
	require.NoError(t, c.Upsert(snap("mid", 0, base.Add(time.Hour))))

	got := lo.Map(c.SortedForDisplay(), func(t domain.TaskSnapshot, _ int) string { return t.OrderNo })
	assert.Equal(t, []string{"new", "mid", "old"}, got)

	stored := lo.Map(c.ListAll(), func(t domain.TaskSnapshot, _ int) string { return t.OrderNo })
	assert.Equal(t, []string{"old", "new", "mid"}, stored)
}

func TestCacheOverSQLite(t *testing.T) {
	kv, err := store.OpenSQLiteKV(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer kv.Close()

	c := New(kv)
	require.NoError(t, c.Upsert(snap("A", domain.TaskStatusProcessing, time.Now())))

	again := New(kv)
	got, ok := again.Get("A")
	require.True(t, ok)
	assert.Equal(t, 50, got.Progress)
}
