// Package recharge tops up points: create a payment, hand the pay URL to the
// user and poll the payment until it settles.
package recharge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"taskdesk/domain"
	"taskdesk/gateway"
	"taskdesk/notify"
	"taskdesk/obs"
	"taskdesk/poller"
	"taskdesk/session"
	"taskdesk/uilock"
)

var (
	ErrNotLoggedIn  = errors.New("未登录")
	ErrBusy         = errors.New("支付处理中，请稍候")
	ErrCreateFailed = errors.New("创建支付订单失败")
	ErrCancelFailed = errors.New("取消支付失败")
)

type API interface {
	CreateRecharge(ctx context.Context, amount decimal.Decimal) gateway.Result
	PaymentStatus(ctx context.Context, paymentNo string) gateway.Result
	CancelPayment(ctx context.Context, paymentNo string) gateway.Result
}

type Guard interface {
	EnsureLoggedIn(ctx context.Context) bool
	LoadProfile(ctx context.Context) session.ProfileView
}

type Options struct {
	Poll     poller.Config
	Notifier notify.Notifier
	// OnCreated receives the new payment, PayURL included, before polling starts.
	OnCreated func(domain.PaymentSession)
}

type Flow struct {
	guard     Guard
	api       API
	lock      uilock.Lock
	notifier  notify.Notifier
	poll      poller.Config
	onCreated func(domain.PaymentSession)
}

func NewFlow(guard Guard, api API, lock uilock.Lock, opts Options) *Flow {
	if opts.Poll.Interval <= 0 {
		opts.Poll = poller.PaymentConfig()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if lock == nil {
		lock = uilock.NewMemory()
	}
	return &Flow{
		guard:     guard,
		api:       api,
		lock:      lock,
		notifier:  opts.Notifier,
		poll:      opts.Poll,
		onCreated: opts.OnCreated,
	}
}

// Result reports how a top-up ended. Session holds the last known state.
type Result struct {
	Session domain.PaymentSession
	Outcome poller.Status
}

// Paid reports whether the payment went through.
func (r Result) Paid() bool {
	return r.Outcome == poller.StatusTerminal && r.Session.Status == domain.PaymentStatusPaid
}

// Pay validates rawAmount, creates a payment and polls it until it settles,
// the poll budget runs out or ctx is cancelled.
func (f *Flow) Pay(ctx context.Context, rawAmount string) (res Result, err error) {
	if f == nil || f.api == nil {
		return Result{}, errors.New("recharge flow 未初始化")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() { obs.RecordSubmission("recharge", err) }()

	if !f.guard.EnsureLoggedIn(ctx) {
		return Result{}, ErrNotLoggedIn
	}
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		f.notifier.Notify(notify.Warning, "提示", strings.TrimPrefix(err.Error(), ErrInvalidAmount.Error()+": "))
		return Result{}, err
	}

	ok, err := f.lock.TryAcquire(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquire ui lock: %w", err)
	}
	if !ok {
		return Result{}, ErrBusy
	}
	polling := false
	defer func() {
		if !polling {
			f.release()
		}
	}()

	f.notifier.Notify(notify.Info, "请稍候", "正在创建支付订单...")
	created := f.api.CreateRecharge(ctx, amount)
	if !created.Success {
		f.notifier.Notify(notify.Error, "创建支付订单失败", created.Message)
		return Result{}, fmt.Errorf("%w: %s", ErrCreateFailed, created.Message)
	}
	var ps domain.PaymentSession
	if err := created.Decode(&ps); err != nil || strings.TrimSpace(ps.PaymentNo) == "" {
		f.notifier.Notify(notify.Error, "支付失败", "创建支付订单时发生错误，请重试")
		return Result{}, fmt.Errorf("%w: 支付单数据无效", ErrCreateFailed)
	}
	if ps.Amount.IsZero() {
		ps.Amount = amount
	}
	res.Session = ps
	slog.Info("payment created", "paymentNo", ps.PaymentNo, "amount", ps.Amount.String())

	f.notifier.Notify(notify.Info, "确认支付", fmt.Sprintf("支付订单创建成功！\n\n订单号：%s\n充值金额：¥%s\n兑换积分：%s积分\n\n请在新窗口中完成支付",
		ps.PaymentNo, FormatYuan(ps.Amount), ps.Amount.String()))
	if strings.TrimSpace(ps.PayURL) == "" {
		f.notifier.Notify(notify.Error, "错误", "支付链接无效")
	}
	if f.onCreated != nil {
		f.onCreated(ps)
	}

	polling = true
	out := f.follow(ctx, ps)
	res.Outcome = out.Status
	if out.Attempts > 0 && out.LastErr == nil {
		res.Session = out.Value
	}
	return res, nil
}

func (f *Flow) follow(ctx context.Context, ps domain.PaymentSession) poller.Outcome[domain.PaymentSession] {
	fetch := func(ctx context.Context) (domain.PaymentSession, error) {
		return f.Status(ctx, ps.PaymentNo)
	}
	hooks := poller.Hooks[domain.PaymentSession]{
		OnTerminal: func(cur domain.PaymentSession) {
			if cur.Status == domain.PaymentStatusPaid {
				amount := cur.Amount
				if amount.IsZero() {
					amount = ps.Amount
				}
				f.notifier.Notify(notify.Success, "支付成功", fmt.Sprintf("支付成功！\n充值金额：¥%s\n获得积分：%s积分", FormatYuan(amount), amount.String()))
				f.guard.LoadProfile(ctx)
				return
			}
			f.notifier.Notify(notify.Warning, "提示", "支付"+cur.Status.Desc())
		},
		OnTimeout: func(lastErr error) {
			if lastErr != nil {
				f.notifier.Notify(notify.Warning, "提示", "支付状态查询超时，请手动刷新页面查看")
				return
			}
			f.notifier.Notify(notify.Warning, "提示", "支付超时，如已完成支付，请稍后刷新页面查看")
		},
		OnDone: func(out poller.Outcome[domain.PaymentSession]) {
			f.release()
			slog.Info("payment poll finished", "paymentNo", ps.PaymentNo, "outcome", out.Status.String(), "attempts", out.Attempts)
		},
	}
	return poller.New(f.poll, fetch, func(p domain.PaymentSession) bool { return p.Status.Terminal() }, hooks).Run(ctx)
}

// Status queries a payment once.
func (f *Flow) Status(ctx context.Context, paymentNo string) (domain.PaymentSession, error) {
	var ps domain.PaymentSession
	r := f.api.PaymentStatus(ctx, paymentNo)
	if !r.Success {
		return ps, fmt.Errorf("查询支付状态失败: %s", r.Message)
	}
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return ps, errors.New("查询支付状态失败: 返回数据为空")
	}
	if err := r.Decode(&ps); err != nil {
		return ps, fmt.Errorf("查询支付状态失败: %w", err)
	}
	if ps.PaymentNo == "" {
		ps.PaymentNo = paymentNo
	}
	return ps, nil
}

// Cancel abandons a pending payment. The submit lock is dropped either way.
func (f *Flow) Cancel(ctx context.Context, paymentNo string) error {
	defer f.release()
	paymentNo = strings.TrimSpace(paymentNo)
	if paymentNo == "" {
		return errors.New("paymentNo 为空")
	}
	r := f.api.CancelPayment(ctx, paymentNo)
	if !r.Success {
		slog.Warn("cancel payment failed", "paymentNo", paymentNo, "code", r.Code, "message", r.Message)
		return fmt.Errorf("%w: %s", ErrCancelFailed, r.Message)
	}
	f.notifier.Notify(notify.Info, "提示", "支付已取消")
	return nil
}

func (f *Flow) release() {
	if err := f.lock.Release(context.Background()); err != nil {
		slog.Warn("recharge: release ui lock failed", "err", err)
	}
}
