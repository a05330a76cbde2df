// Package order runs the three order pages: validate the form, create the
// order, remember it in the task cache and follow the AI task until it ends.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskdesk/domain"
	"taskdesk/gateway"
	"taskdesk/notify"
	"taskdesk/obs"
	"taskdesk/poller"
	"taskdesk/session"
	"taskdesk/taskcache"
	"taskdesk/uilock"
)

var (
	ErrNotLoggedIn  = errors.New("未登录")
	ErrBusy         = errors.New("任务提交中，请稍候")
	ErrCreateFailed = errors.New("创建订单失败")
	ErrUpload       = errors.New("文件上传失败")
)

// API is the part of the backend the order flows call.
type API interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) gateway.Result
	Order(ctx context.Context, orderNo string) gateway.Result
	CancelOrder(ctx context.Context, orderNo string) gateway.Result
	TaskByID(ctx context.Context, taskID string) gateway.Result
	TaskByOrderNo(ctx context.Context, orderNo string) gateway.Result
}

type Guard interface {
	EnsureLoggedIn(ctx context.Context) bool
	LoadProfile(ctx context.Context) session.ProfileView
}

// Uploader stores a local document and returns a URL the backend can read.
type Uploader interface {
	UploadPaper(ctx context.Context, localPath string) (string, error)
}

type Options struct {
	Poll     poller.Config
	Uploader Uploader
	Notifier notify.Notifier
	// OnCaption receives the "处理中 (n/max)..." text while a task is polled.
	OnCaption func(caption string)
}

type Flow struct {
	guard    Guard
	api      API
	cache    *taskcache.Cache
	lock     uilock.Lock
	uploader Uploader
	notifier notify.Notifier
	poll     poller.Config
	caption  func(string)
}

func NewFlow(guard Guard, api API, cache *taskcache.Cache, lock uilock.Lock, opts Options) *Flow {
	if opts.Poll.Interval <= 0 {
		opts.Poll = poller.TaskConfig()
	}
	if opts.Poll.Clock == nil {
		opts.Poll.Clock = poller.RealClock
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if lock == nil {
		lock = uilock.NewMemory()
	}
	return &Flow{
		guard:    guard,
		api:      api,
		cache:    cache,
		lock:     lock,
		uploader: opts.Uploader,
		notifier: opts.Notifier,
		poll:     opts.Poll,
		caption:  opts.OnCaption,
	}
}

// Submission is what a submit produced. Outcome is only meaningful when Polled.
type Submission struct {
	Receipt domain.OrderReceipt
	Polled  bool
	Outcome poller.Status
	Task    *domain.RemoteTask
}

func (f *Flow) SubmitParagraph(ctx context.Context, form ParagraphForm, wait bool) (Submission, error) {
	return f.submit(ctx, "paragraph", wait, func(context.Context) (domain.OrderRequest, error) {
		return BuildParagraph(form)
	}, nil)
}

func (f *Flow) SubmitArticle(ctx context.Context, form ArticleForm, wait bool) (Submission, error) {
	var files []LocalFile
	validate := func(context.Context) (domain.OrderRequest, error) {
		var err error
		files, err = ValidateArticle(form)
		return domain.OrderRequest{}, err
	}
	// uploads run under the lock, after validation
	prepare := func(ctx context.Context, _ domain.OrderRequest) (domain.OrderRequest, error) {
		uploaded, err := f.upload(ctx, files)
		if err != nil {
			return domain.OrderRequest{}, err
		}
		paperURL := ""
		if len(uploaded) > 0 {
			paperURL = uploaded[0].FileURL
		}
		return BuildArticle(files, paperURL, uploaded), nil
	}
	return f.submit(ctx, "article", wait, validate, prepare)
}

func (f *Flow) SubmitEssay(ctx context.Context, form EssayForm, wait bool) (Submission, error) {
	var files []LocalFile
	validate := func(context.Context) (domain.OrderRequest, error) {
		req, fs, err := ValidateEssay(form)
		files = fs
		return req, err
	}
	prepare := func(ctx context.Context, req domain.OrderRequest) (domain.OrderRequest, error) {
		if len(files) == 0 {
			return req, nil
		}
		uploaded, err := f.upload(ctx, files)
		if err != nil {
			return domain.OrderRequest{}, err
		}
		if len(uploaded) == 0 {
			// no upload store: send names and sizes only
			for _, lf := range files {
				uploaded = append(uploaded, domain.OrderFile{FileName: lf.Name, FileSize: lf.Size})
			}
		}
		req.Files = uploaded
		return req, nil
	}
	return f.submit(ctx, "essay", wait, validate, prepare)
}

// upload returns nil without an uploader.
func (f *Flow) upload(ctx context.Context, files []LocalFile) ([]domain.OrderFile, error) {
	if f.uploader == nil {
		return nil, nil
	}
	out := make([]domain.OrderFile, 0, len(files))
	for _, lf := range files {
		u, err := f.uploader.UploadPaper(ctx, lf.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUpload, lf.Name, err)
		}
		out = append(out, domain.OrderFile{FileName: lf.Name, FileSize: lf.Size, FileURL: u})
	}
	return out, nil
}

type prepareFunc func(ctx context.Context, req domain.OrderRequest) (domain.OrderRequest, error)

func (f *Flow) submit(ctx context.Context, flow string, wait bool, validate func(context.Context) (domain.OrderRequest, error), prepare prepareFunc) (sub Submission, err error) {
	defer func() { obs.RecordSubmission(flow, err) }()

	if !f.guard.EnsureLoggedIn(ctx) {
		return Submission{}, ErrNotLoggedIn
	}

	req, err := validate(ctx)
	if err != nil {
		f.notifier.Notify(notify.Warning, "提示", validationText(err))
		return Submission{}, err
	}

	ok, err := f.lock.TryAcquire(ctx)
	if err != nil {
		return Submission{}, fmt.Errorf("acquire ui lock: %w", err)
	}
	if !ok {
		return Submission{}, ErrBusy
	}
	handedOff := false
	defer func() {
		if !handedOff {
			f.release()
		}
	}()

	if prepare != nil {
		req, err = prepare(ctx, req)
		if err != nil {
			f.notifier.Notify(notify.Error, "提交失败", err.Error())
			return Submission{}, err
		}
	}

	res := f.api.CreateOrder(ctx, req)
	if !res.Success {
		f.notifier.Notify(notify.Error, "创建订单失败", res.Message)
		return Submission{}, fmt.Errorf("%w: %s", ErrCreateFailed, res.Message)
	}
	var receipt domain.OrderReceipt
	if err := res.Decode(&receipt); err != nil || receipt.OrderNo == "" {
		f.notifier.Notify(notify.Error, "创建订单失败", "订单返回数据无效")
		return Submission{}, fmt.Errorf("%w: 订单返回数据无效", ErrCreateFailed)
	}
	sub.Receipt = receipt

	status := domain.TaskStatusPending
	if receipt.Status != nil {
		status = *receipt.Status
	}
	title := receipt.Title
	if title == "" {
		title = req.Title
	}
	if err := f.cache.Upsert(domain.TaskSnapshot{
		OrderNo:    receipt.OrderNo,
		OrderType:  req.OrderType,
		Title:      title,
		Status:     status,
		CreateTime: domain.ParseTime(receipt.CreateTime, f.poll.Clock.Now()),
	}); err != nil {
		slog.Warn("order: cache write failed", "orderNo", receipt.OrderNo, "err", err)
	}
	slog.Info("order created", "orderNo", receipt.OrderNo, "orderType", int(req.OrderType), "points", receipt.Points)
	f.notifier.Notify(notify.Success, "提交成功", fmt.Sprintf("订单创建成功！\n订单号：%s\n消耗积分：%d", receipt.OrderNo, receipt.Points))
	f.guard.LoadProfile(ctx)

	if !wait {
		return sub, nil
	}

	handedOff = true
	out := f.followTask(ctx, receipt.OrderNo, req.OrderType)
	sub.Polled = true
	sub.Outcome = out.Status
	if out.Attempts > 0 && out.LastErr == nil {
		t := out.Value
		sub.Task = &t
	}
	return sub, nil
}

func (f *Flow) release() {
	if err := f.lock.Release(context.Background()); err != nil {
		slog.Warn("order: release ui lock failed", "err", err)
	}
}

// followTask polls the AI task of orderNo; every successful probe is copied
// into the cache. The lock is released when the poll ends.
func (f *Flow) followTask(ctx context.Context, orderNo string, orderType domain.OrderType) poller.Outcome[domain.RemoteTask] {
	fetch := func(ctx context.Context) (domain.RemoteTask, error) {
		t, err := f.queryTask(ctx, orderNo)
		if err != nil {
			slog.Debug("task probe failed", "orderNo", orderNo, "err", err)
			return t, err
		}
		if _, err := f.cache.ApplyRemoteUpdate(orderNo, t.Status, t.FileURL, t.ErrorMsg); err != nil {
			slog.Warn("order: cache update failed", "orderNo", orderNo, "err", err)
		}
		return t, nil
	}

	hooks := poller.Hooks[domain.RemoteTask]{
		OnProgress: func(attempt, max int, _ domain.RemoteTask) {
			c := fmt.Sprintf("处理中 (%d/%d)...", attempt, max)
			if f.caption != nil {
				f.caption(c)
			}
		},
		OnTerminal: func(t domain.RemoteTask) {
			if t.Status == domain.TaskStatusCompleted {
				f.notifier.Notify(notify.Success, "成功", completedText(orderType))
				return
			}
			msg := failedText(orderType)
			if t.ErrorMsg != nil && *t.ErrorMsg != "" {
				msg = *t.ErrorMsg
			}
			f.notifier.Notify(notify.Error, "失败", msg)
		},
		OnTimeout: func(lastErr error) {
			if lastErr != nil {
				f.notifier.Notify(notify.Error, "查询超时", `任务状态查询超时，请稍后在"我的任务"中查看`)
				return
			}
			f.notifier.Notify(notify.Warning, "提示", `处理时间较长，请稍后在"我的任务"中查看`)
		},
		OnDone: func(out poller.Outcome[domain.RemoteTask]) {
			f.release()
			slog.Info("task poll finished", "orderNo", orderNo, "outcome", out.Status.String(), "attempts", out.Attempts)
		},
	}

	return poller.New(f.poll, fetch, func(t domain.RemoteTask) bool { return t.Status.Terminal() }, hooks).Run(ctx)
}

func (f *Flow) queryTask(ctx context.Context, orderNo string) (domain.RemoteTask, error) {
	res := f.api.TaskByOrderNo(ctx, orderNo)
	return decodeTask(res)
}

func decodeTask(res gateway.Result) (domain.RemoteTask, error) {
	var t domain.RemoteTask
	if !res.Success {
		return t, fmt.Errorf("查询任务状态失败: %s", res.Message)
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return t, errors.New("查询任务状态失败: 返回数据为空")
	}
	if err := res.Decode(&t); err != nil {
		return t, fmt.Errorf("查询任务状态失败: %w", err)
	}
	return t, nil
}

func completedText(t domain.OrderType) string {
	if t == domain.OrderTypeEssayGeneration {
		return "范文生成已完成！"
	}
	return "降重处理已完成！"
}

func failedText(t domain.OrderType) string {
	if t == domain.OrderTypeEssayGeneration {
		return "范文生成失败"
	}
	return "降重处理失败"
}

// validationText strips the sentinel prefix for display.
func validationText(err error) string {
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
