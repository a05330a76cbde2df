package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"taskdesk/apicode"
	"taskdesk/domain"
	"taskdesk/gateway"
	"taskdesk/notify"
)

type State int

const (
	StateLoggedOut State = iota
	StateLoggedInTrusted
	// StateLoggedInUnverified means the server rejected the session once but
	// the local identity is kept until the next protected action checks again.
	StateLoggedInUnverified
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateLoggedInTrusted:
		return "logged_in"
	case StateLoggedInUnverified:
		return "logged_in_unverified"
	default:
		return "unknown"
	}
}

const ExpiredMessage = "登录已过期，请重新登录"

var (
	ErrNotLoggedIn = errors.New("未登录")
	ErrLoginFailed = errors.New("登录失败")
	ErrSendCode    = errors.New("发送失败")
)

// API is the subset of the backend the guard talks to.
type API interface {
	UserProfile(ctx context.Context) gateway.Result
	Login(ctx context.Context, account, code string) gateway.Result
	SendCode(ctx context.Context, account string, way int) gateway.Result
	Logout(ctx context.Context) gateway.Result
}

type Redirector interface {
	RedirectToLogin()
}

type RedirectFunc func()

func (f RedirectFunc) RedirectToLogin() {
	if f != nil {
		f()
	}
}

// ProfileView is what a page header shows after LoadProfile.
type ProfileView struct {
	State           State
	Account         string
	Display         AccountDisplay
	AvailablePoints int64
	FrozenPoints    int64
	Profile         *domain.UserInfo
}

type Guard struct {
	mu       sync.Mutex
	state    State
	store    *Store
	api      API
	notifier notify.Notifier
	redirect Redirector
}

// NewGuard derives the initial state from storage.
func NewGuard(st *Store, api API, notifier notify.Notifier, redirect Redirector) *Guard {
	if notifier == nil {
		notifier = notify.Log{}
	}
	if redirect == nil {
		redirect = RedirectFunc(nil)
	}
	g := &Guard{store: st, api: api, notifier: notifier, redirect: redirect}
	switch {
	case !st.IsLoggedIn():
		g.state = StateLoggedOut
	case st.Warning():
		g.state = StateLoggedInUnverified
	default:
		g.state = StateLoggedInTrusted
	}
	return g
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Guard) Session() domain.Session {
	return g.store.Load()
}

// SendCode validates account and asks the backend for a verification code.
func (g *Guard) SendCode(ctx context.Context, account string) error {
	account = strings.TrimSpace(account)
	way, err := AccountWay(account)
	if err != nil {
		return err
	}
	res := g.api.SendCode(ctx, account, way)
	if !res.Success {
		return fmt.Errorf("%w: %s", ErrSendCode, res.Message)
	}
	return nil
}

// Login performs the strict login call and persists the identity on success.
func (g *Guard) Login(ctx context.Context, account, code string) (domain.Session, error) {
	account = strings.TrimSpace(account)
	code = strings.TrimSpace(code)
	if _, err := AccountWay(account); err != nil {
		return domain.Session{}, err
	}
	if err := ValidateCode(code); err != nil {
		return domain.Session{}, err
	}

	res := g.api.Login(ctx, account, code)
	if !res.Success {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrLoginFailed, res.Message)
	}

	var info domain.UserInfo
	if err := res.Decode(&info); err != nil {
		slog.Warn("login: user info unreadable", "err", err)
	}
	if info.Account == "" {
		info.Account = account
	}
	sess := domain.Session{Account: info.Account, UserID: info.UserID.String(), Profile: &info}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Save(sess); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	g.clearWarningLocked()
	g.state = StateLoggedInTrusted
	slog.Info("login ok", "userId", sess.UserID)
	return sess, nil
}

// LoadProfile is the page-init check. It only redirects when there is no
// local identity at all; a server-side 10003 downgrades to unverified.
func (g *Guard) LoadProfile(ctx context.Context) ProfileView {
	if !g.store.IsLoggedIn() {
		g.mu.Lock()
		g.expireLocked()
		g.mu.Unlock()
		return ProfileView{State: StateLoggedOut, Display: DisplayFor("")}
	}

	res := g.api.UserProfile(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()

	local := g.store.Load()
	view := ProfileView{Account: local.Account, Profile: local.Profile}

	switch {
	case res.Success:
		g.clearWarningLocked()
		g.state = StateLoggedInTrusted

		var p domain.Profile
		if err := res.Decode(&p); err != nil {
			slog.Warn("profile: payload unreadable", "err", err)
		}
		if p.UserInfo != nil {
			account, err := g.store.SaveProfile(*p.UserInfo)
			if err != nil {
				slog.Warn("profile: cache failed", "err", err)
			}
			view.Account = account
			view.Profile = p.UserInfo
		}
		if p.PointsBalance != nil {
			view.AvailablePoints = p.PointsBalance.AvailablePoints
			view.FrozenPoints = p.PointsBalance.FrozenPoints
		}

	case res.Code == apicode.NotLoggedIn:
		slog.Warn("profile: server session expired, keeping local identity")
		if err := g.store.SetWarning(); err != nil {
			slog.Warn("profile: set warning failed", "err", err)
		}
		g.state = StateLoggedInUnverified

	default:
		slog.Warn("profile: fetch failed, using cached identity", "code", res.Code, "message", res.Message)
	}

	view.State = g.state
	view.Display = DisplayFor(view.Account)
	return view
}

// EnsureLoggedIn gates protected actions. Only the unverified state costs a
// network call.
func (g *Guard) EnsureLoggedIn(ctx context.Context) bool {
	g.mu.Lock()
	if !g.store.IsLoggedIn() {
		g.expireLocked()
		g.mu.Unlock()
		return false
	}
	if g.state == StateLoggedOut {
		// identity appeared in storage after construction
		g.state = StateLoggedInTrusted
	}
	if g.state != StateLoggedInUnverified && !g.store.Warning() {
		g.mu.Unlock()
		return true
	}
	g.mu.Unlock()

	res := g.api.UserProfile(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !res.Success && res.Code == apicode.NotLoggedIn {
		g.expireLocked()
		return false
	}
	g.clearWarningLocked()
	g.state = StateLoggedInTrusted
	return true
}

// Logout tells the server (best effort) and forgets the local identity.
func (g *Guard) Logout(ctx context.Context) {
	res := g.api.Logout(ctx)
	if !res.Success {
		slog.Warn("logout: server call failed", "code", res.Code, "message", res.Message)
	}
	if c, ok := g.api.(interface{ ClearCookies() }); ok {
		c.ClearCookies()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.store.Clear(); err != nil {
		slog.Warn("logout: clear session failed", "err", err)
	}
	g.clearWarningLocked()
	g.state = StateLoggedOut
}

func (g *Guard) expireLocked() {
	g.notifier.Notify(notify.Error, "提示", ExpiredMessage)
	if err := g.store.Clear(); err != nil {
		slog.Warn("expire: clear session failed", "err", err)
	}
	g.clearWarningLocked()
	g.state = StateLoggedOut
	g.redirect.RedirectToLogin()
}

func (g *Guard) clearWarningLocked() {
	if err := g.store.ClearWarning(); err != nil {
		slog.Warn("clear login warning failed", "err", err)
	}
}
