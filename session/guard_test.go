package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/apicode"
	"taskdesk/domain"
	"taskdesk/gateway"
	"taskdesk/notify"
	"taskdesk/store"
)

type fakeAPI struct {
	profile      []gateway.Result
	profileCalls int
	login        gateway.Result
	loginCalls   int
	sendCalls    int
	lastWay      int
	logoutCalls  int
	cookiesReset bool
}

func (f *fakeAPI) UserProfile(ctx context.Context) gateway.Result {
	f.profileCalls++
	if len(f.profile) == 0 {
		return gateway.Result{Success: true, Code: 200}
	}
	r := f.profile[0]
	if len(f.profile) > 1 {
		f.profile = f.profile[1:]
	}
	return r
}

func (f *fakeAPI) Login(ctx context.Context, account, code string) gateway.Result {
	f.loginCalls++
	return f.login
}

func (f *fakeAPI) SendCode(ctx context.Context, account string, way int) gateway.Result {
	f.sendCalls++
	f.lastWay = way
	return gateway.Result{Success: true, Code: 200}
}

func (f *fakeAPI) Logout(ctx context.Context) gateway.Result {
	f.logoutCalls++
	return gateway.Result{Code: apicode.Network, Message: "网络错误，请检查网络连接"}
}

func (f *fakeAPI) ClearCookies() { f.cookiesReset = true }

type fixture struct {
	durable    *store.InMemoryKV
	ephemeral  *store.InMemoryKV
	store      *Store
	api        *fakeAPI
	notices    *notify.Recorder
	redirected int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		durable:   store.NewInMemoryKV(),
		ephemeral: store.NewInMemoryKV(),
		api:       &fakeAPI{},
		notices:   &notify.Recorder{},
	}
	f.store = NewStore(f.durable, f.ephemeral)
	return f
}

func (f *fixture) guard() *Guard {
	return NewGuard(f.store, f.api, f.notices, RedirectFunc(func() { f.redirected++ }))
}

func (f *fixture) loggedIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Save(domain.Session{Account: "18200005812", UserID: "7"}))
}

func notLoggedIn() gateway.Result {
	return gateway.Result{Code: apicode.NotLoggedIn, Message: "未登录或登录已过期"}
}

func TestInitialState(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StateLoggedOut, f.guard().State())

	f.loggedIn(t)
	assert.Equal(t, StateLoggedInTrusted, f.guard().State())

	require.NoError(t, f.store.SetWarning())
	assert.Equal(t, StateLoggedInUnverified, f.guard().State())
}

func TestEnsureLoggedInWithoutIdentityMakesNoCall(t *testing.T) {
	f := newFixture(t)
	g := f.guard()

	assert.False(t, g.EnsureLoggedIn(context.Background()))
	assert.Equal(t, 0, f.api.profileCalls)
	assert.Equal(t, 1, f.redirected)
	assert.Equal(t, ExpiredMessage, f.notices.Last().Message)
}

func TestEnsureLoggedInTrustedMakesNoCall(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	g := f.guard()

	assert.True(t, g.EnsureLoggedIn(context.Background()))
	assert.Equal(t, 0, f.api.profileCalls)
	assert.Equal(t, 0, f.redirected)
}

func TestLoadProfileNotLoggedInKeepsLocalIdentity(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.api.profile = []gateway.Result{notLoggedIn()}
	g := f.guard()

	view := g.LoadProfile(context.Background())
	assert.Equal(t, StateLoggedInUnverified, view.State)
	assert.Equal(t, "18200005812", view.Account)
	assert.Equal(t, "182****5812", view.Display.Name)
	assert.Zero(t, view.AvailablePoints)
	assert.True(t, f.store.Warning())
	assert.True(t, f.store.IsLoggedIn())
	assert.Equal(t, 0, f.redirected)
}

func TestUnverifiedThenExpired(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.api.profile = []gateway.Result{notLoggedIn()}
	g := f.guard()
	g.LoadProfile(context.Background())
	require.Equal(t, 1, f.api.profileCalls)

	assert.False(t, g.EnsureLoggedIn(context.Background()))
	assert.Equal(t, 2, f.api.profileCalls)
	assert.Equal(t, StateLoggedOut, g.State())
	assert.False(t, f.store.IsLoggedIn())
	assert.False(t, f.store.Warning())
	assert.Equal(t, 1, f.redirected)
}

func TestUnverifiedThenRecovered(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.api.profile = []gateway.Result{notLoggedIn(), {Success: true, Code: 200}}
	g := f.guard()
	g.LoadProfile(context.Background())

	assert.True(t, g.EnsureLoggedIn(context.Background()))
	assert.Equal(t, StateLoggedInTrusted, g.State())
	assert.False(t, f.store.Warning())

	// trusted again: no further calls
	assert.True(t, g.EnsureLoggedIn(context.Background()))
	assert.Equal(t, 2, f.api.profileCalls)
}

func TestUnverifiedOtherFailureStillPasses(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	require.NoError(t, f.store.SetWarning())
	f.api.profile = []gateway.Result{{Code: apicode.Network, Message: "网络错误"}}
	g := f.guard()

	assert.True(t, g.EnsureLoggedIn(context.Background()))
	assert.Equal(t, 1, f.api.profileCalls)
	assert.Equal(t, StateLoggedInTrusted, g.State())
}

func TestLoadProfileSuccessCachesProfile(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.api.profile = []gateway.Result{{
		Success: true,
		Code:    200,
		Data:    []byte(`{"userInfo":{"userId":42,"account":"writer@example.com"},"pointsBalance":{"availablePoints":1200,"frozenPoints":5}}`),
	}}
	require.NoError(t, f.store.SetWarning())
	g := f.guard()

	view := g.LoadProfile(context.Background())
	assert.Equal(t, StateLoggedInTrusted, view.State)
	assert.Equal(t, int64(1200), view.AvailablePoints)
	assert.Equal(t, "writer", view.Display.Name)
	assert.Equal(t, "W", view.Display.Avatar)
	assert.False(t, f.store.Warning())

	sess := f.store.Load()
	assert.Equal(t, "writer@example.com", sess.Account)
	assert.Equal(t, "42", sess.UserID)
	require.NotNil(t, sess.Profile)
}

func TestLoadProfileOtherFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	f.api.profile = []gateway.Result{{Code: 10000, Message: "系统异常，请稍后重试"}}
	g := f.guard()

	view := g.LoadProfile(context.Background())
	assert.Equal(t, StateLoggedInTrusted, view.State)
	assert.Equal(t, "18200005812", view.Account)
	assert.False(t, f.store.Warning())
}

func TestLoadProfileWithoutIdentityRedirects(t *testing.T) {
	f := newFixture(t)
	g := f.guard()
	view := g.LoadProfile(context.Background())
	assert.Equal(t, StateLoggedOut, view.State)
	assert.Equal(t, 0, f.api.profileCalls)
	assert.Equal(t, 1, f.redirected)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.api.login = gateway.Result{Success: true, Code: 200, Data: []byte(`{"userId":"u1","account":"a@b.com"}`)}
	require.NoError(t, f.store.SetWarning())
	g := f.guard()

	sess, err := g.Login(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", sess.Account)
	assert.Equal(t, StateLoggedInTrusted, g.State())
	assert.False(t, f.store.Warning())
	assert.Equal(t, "u1", f.store.Load().UserID)
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t)
	f.api.login = gateway.Result{Code: 12002, Message: "验证码错误"}
	g := f.guard()

	_, err := g.Login(context.Background(), "13800138000", "1234")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginFailed))
	assert.Contains(t, err.Error(), "验证码错误")
	assert.False(t, f.store.IsLoggedIn())
}

func TestLoginValidatesLocally(t *testing.T) {
	f := newFixture(t)
	g := f.guard()

	_, err := g.Login(context.Background(), "12345", "1234")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = g.Login(context.Background(), "13800138000", "12")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, f.api.loginCalls)
}

func TestSendCode(t *testing.T) {
	f := newFixture(t)
	g := f.guard()

	require.NoError(t, g.SendCode(context.Background(), "13800138000"))
	assert.Equal(t, gateway.WayPhone, f.api.lastWay)
	require.NoError(t, g.SendCode(context.Background(), "a@b.com"))
	assert.Equal(t, gateway.WayEmail, f.api.lastWay)

	assert.ErrorIs(t, g.SendCode(context.Background(), "a@b"), ErrInvalidInput)
	assert.Equal(t, 2, f.api.sendCalls)
}

func TestLogoutIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.loggedIn(t)
	g := f.guard()

	g.Logout(context.Background())
	assert.Equal(t, 1, f.api.logoutCalls)
	assert.True(t, f.api.cookiesReset)
	assert.Equal(t, StateLoggedOut, g.State())
	assert.False(t, f.store.IsLoggedIn())
	assert.Equal(t, 0, f.redirected)
}

func TestWarningInDurableStoreSurvivesRestart(t *testing.T) {
	durable := store.NewInMemoryKV()
	api := &fakeAPI{profile: []gateway.Result{notLoggedIn()}}
	first := NewStore(durable, durable)
	require.NoError(t, first.Save(domain.Session{Account: "18200005812", UserID: "7"}))

	g := NewGuard(first, api, &notify.Recorder{}, nil)
	g.LoadProfile(context.Background())
	require.Equal(t, StateLoggedInUnverified, g.State())

	// a later process opens the same store
	next := NewStore(durable, durable)
	redirected := 0
	g2 := NewGuard(next, api, &notify.Recorder{}, RedirectFunc(func() { redirected++ }))
	assert.Equal(t, StateLoggedInUnverified, g2.State())

	assert.False(t, g2.EnsureLoggedIn(context.Background()))
	assert.Equal(t, 2, api.profileCalls)
	assert.False(t, next.Warning())
	assert.Equal(t, 1, redirected)
}

func TestWarningInDurableStoreClearedOnLogin(t *testing.T) {
	durable := store.NewInMemoryKV()
	st := NewStore(durable, durable)
	require.NoError(t, st.Save(domain.Session{Account: "18200005812", UserID: "7"}))
	require.NoError(t, st.SetWarning())

	api := &fakeAPI{login: gateway.Result{Success: true, Code: 200, Data: []byte(`{"userId":"7","account":"18200005812"}`)}}
	g := NewGuard(st, api, &notify.Recorder{}, nil)
	_, err := g.Login(context.Background(), "18200005812", "123456")
	require.NoError(t, err)

	assert.False(t, NewStore(durable, durable).Warning())
	assert.Equal(t, StateLoggedInTrusted, g.State())
}
