package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/domain"
	"taskdesk/gateway"
	"taskdesk/notify"
)

func seed(t *testing.T, fx *fixture, orderNos ...string) {
	t.Helper()
	for i, no := range orderNos {
		require.NoError(t, fx.cache.Upsert(domain.TaskSnapshot{
			OrderNo:    no,
			OrderType:  domain.OrderTypeArticleRewrite,
			Title:      "文章降重 - " + no,
			CreateTime: start.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestRefreshAllSkipsFailures(t *testing.T) {
	fx := newFixture(t)
	seed(t, fx, "A", "B", "C")
	fx.api.tasks["A"] = []gateway.Result{ok(domain.RemoteTask{Status: domain.TaskStatusCompleted, FileURL: strp("https://f/a")})}
	fx.api.tasks["C"] = []gateway.Result{ok(domain.RemoteTask{Status: domain.TaskStatusProcessing})}

	rep, err := fx.flow.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefreshReport{Total: 3, Updated: 2, Failed: 1}, rep)
	assert.Equal(t, []string{"A", "B", "C"}, fx.api.queried)

	a, _ := fx.cache.Get("A")
	assert.Equal(t, 100, a.Progress)
	b, _ := fx.cache.Get("B")
	assert.Equal(t, domain.TaskStatusPending, b.Status)
	c, _ := fx.cache.Get("C")
	assert.Equal(t, 50, c.Progress)
}

func TestRefreshAllStopsOnCancel(t *testing.T) {
	fx := newFixture(t)
	seed(t, fx, "A", "B")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := fx.flow.RefreshAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, rep.Total)
	assert.Empty(t, fx.api.queried)
}

func TestRefreshAllRequiresLogin(t *testing.T) {
	fx := newFixture(t)
	fx.guard.loggedIn = false
	_, err := fx.flow.RefreshAll(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRemoveAndDownload(t *testing.T) {
	fx := newFixture(t)
	seed(t, fx, "A", "B")
	_, err := fx.cache.ApplyRemoteUpdate("A", domain.TaskStatusCompleted, strp("https://f/a"), nil)
	require.NoError(t, err)

	u, err := fx.flow.Download("A")
	require.NoError(t, err)
	assert.Equal(t, "https://f/a", u)

	_, err = fx.flow.Download("B")
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, notify.Notice{Level: notify.Warning, Title: "提示", Message: "文件尚未生成或文件链接无效"}, fx.notices.Last())

	_, err = fx.flow.Download("missing")
	assert.ErrorIs(t, err, ErrUnknownOrder)

	require.NoError(t, fx.flow.Remove("A"))
	assert.Equal(t, "任务已删除", fx.notices.Last().Message)
	_, found := fx.cache.Get("A")
	assert.False(t, found)
	require.NoError(t, fx.flow.Remove("A"))
}

func TestCancelDetailAndTaskStatus(t *testing.T) {
	fx := newFixture(t)
	fx.api.cancel = fail(30002, "订单状态不允许取消")
	err := fx.flow.Cancel(context.Background(), "A")
	require.Error(t, err)
	assert.Equal(t, "订单状态不允许取消", fx.notices.Last().Message)

	fx.api.cancel = ok(nil)
	require.NoError(t, fx.flow.Cancel(context.Background(), "A"))

	fx.api.order = ok(map[string]any{"orderNo": "A", "status": 1})
	raw, err := fx.flow.Detail(context.Background(), "A")
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderNo":"A","status":1}`, string(raw))

	fx.api.taskByID = ok(map[string]any{"taskId": 77, "orderNo": "A", "status": 2})
	task, err := fx.flow.TaskStatus(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, domain.ID("77"), task.TaskID)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)

	fx.api.taskByID = ok(nil)
	_, err = fx.flow.TaskStatus(context.Background(), "78")
	assert.Error(t, err)
}
