package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"taskdesk/domain"
	"taskdesk/notify"
)

var (
	ErrNoFile       = errors.New("文件尚未生成或文件链接无效")
	ErrUnknownOrder = errors.New("任务不存在")
)

// RefreshReport counts what RefreshAll did.
type RefreshReport struct {
	Total   int
	Updated int
	Failed  int
}

// RefreshAll queries every cached task once, one at a time, in stored order.
// Failed queries are skipped and leave the entry as it was.
func (f *Flow) RefreshAll(ctx context.Context) (RefreshReport, error) {
	if !f.guard.EnsureLoggedIn(ctx) {
		return RefreshReport{}, ErrNotLoggedIn
	}
	tasks := f.cache.ListAll()
	rep := RefreshReport{Total: len(tasks)}
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		remote, err := f.queryTask(ctx, t.OrderNo)
		if err != nil {
			rep.Failed++
			slog.Warn("refresh task failed", "orderNo", t.OrderNo, "err", err)
			continue
		}
		ok, err := f.cache.ApplyRemoteUpdate(t.OrderNo, remote.Status, remote.FileURL, remote.ErrorMsg)
		if err != nil {
			rep.Failed++
			slog.Warn("refresh task: cache write failed", "orderNo", t.OrderNo, "err", err)
			continue
		}
		if ok {
			rep.Updated++
		}
	}
	return rep, nil
}

// Remove forgets a task locally. The backend order is left alone.
func (f *Flow) Remove(orderNo string) error {
	if err := f.cache.Remove(orderNo); err != nil {
		f.notifier.Notify(notify.Error, "错误", "删除任务失败")
		return fmt.Errorf("remove %s: %w", orderNo, err)
	}
	f.notifier.Notify(notify.Success, "成功", "任务已删除")
	return nil
}

// Download returns the result file URL of a cached task.
func (f *Flow) Download(orderNo string) (string, error) {
	t, ok := f.cache.Get(orderNo)
	if !ok {
		return "", ErrUnknownOrder
	}
	if t.Status != domain.TaskStatusCompleted || t.FileURL == nil || *t.FileURL == "" {
		f.notifier.Notify(notify.Warning, "提示", ErrNoFile.Error())
		return "", ErrNoFile
	}
	f.notifier.Notify(notify.Success, "下载", "正在下载文件...")
	return *t.FileURL, nil
}

// Cancel asks the backend to cancel orderNo.
func (f *Flow) Cancel(ctx context.Context, orderNo string) error {
	if !f.guard.EnsureLoggedIn(ctx) {
		return ErrNotLoggedIn
	}
	res := f.api.CancelOrder(ctx, orderNo)
	if !res.Success {
		f.notifier.Notify(notify.Error, "取消失败", res.Message)
		return fmt.Errorf("cancel order %s: %s", orderNo, res.Message)
	}
	f.notifier.Notify(notify.Info, "提示", "订单已取消")
	return nil
}

// Detail returns the raw order payload; its fields vary by order type.
func (f *Flow) Detail(ctx context.Context, orderNo string) (json.RawMessage, error) {
	if !f.guard.EnsureLoggedIn(ctx) {
		return nil, ErrNotLoggedIn
	}
	res := f.api.Order(ctx, orderNo)
	if !res.Success {
		return nil, fmt.Errorf("query order %s: %s", orderNo, res.Message)
	}
	return res.Data, nil
}

// TaskStatus looks a task up by its task id.
func (f *Flow) TaskStatus(ctx context.Context, taskID string) (domain.RemoteTask, error) {
	if !f.guard.EnsureLoggedIn(ctx) {
		return domain.RemoteTask{}, ErrNotLoggedIn
	}
	return decodeTask(f.api.TaskByID(ctx, taskID))
}
