package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdesk/domain"
	"taskdesk/store"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(store.NewInMemoryKV(), nil)
	assert.False(t, s.IsLoggedIn())

	info := domain.UserInfo{UserID: "9", Account: "13800138000", Nickname: "n"}
	require.NoError(t, s.Save(domain.Session{Account: info.Account, UserID: "9", Profile: &info}))
	assert.True(t, s.IsLoggedIn())

	got := s.Load()
	assert.Equal(t, "13800138000", got.Account)
	assert.Equal(t, "9", got.UserID)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "n", got.Profile.Nickname)

	require.NoError(t, s.Clear())
	assert.False(t, s.IsLoggedIn())
	assert.Nil(t, s.Load().Profile)
}

func TestStoreCorruptUserInfo(t *testing.T) {
	kv := store.NewInMemoryKV()
	require.NoError(t, kv.Set(KeyAccount, "x"))
	require.NoError(t, kv.Set(KeyUserInfo, "{not json"))
	s := NewStore(kv, nil)

	got := s.Load()
	assert.Equal(t, "x", got.Account)
	assert.Nil(t, got.Profile)
}

func TestSaveProfileDefaultsAccount(t *testing.T) {
	s := NewStore(store.NewInMemoryKV(), nil)
	account, err := s.SaveProfile(domain.UserInfo{UserID: "1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAccountName, account)
	assert.Equal(t, DefaultAccountName, s.Load().Account)
}

func TestWarningFollowsWarningStore(t *testing.T) {
	durable := store.NewInMemoryKV()
	s := NewStore(durable, store.NewInMemoryKV())
	require.NoError(t, s.SetWarning())
	assert.True(t, s.Warning())

	// an in-memory warning store does not carry the flag over
	assert.False(t, NewStore(durable, nil).Warning())

	shared := NewStore(durable, durable)
	require.NoError(t, shared.SetWarning())
	assert.True(t, NewStore(durable, durable).Warning())
	require.NoError(t, shared.ClearWarning())
	assert.False(t, NewStore(durable, durable).Warning())
}

func TestDisplayFor(t *testing.T) {
	cases := []struct {
		in     string
		avatar string
		name   string
	}{
		{"", "U", "用户"},
		{"18200005812", "1", "182****5812"},
		{"bob@example.com", "B", "bob"},
		{"verylongname@example.com", "V", "verylo..."},
		{"alice", "A", "alice"},
		{"写作爱好者一二三四五", "写", "写作爱好者一..."},
	}
	for _, c := range cases {
		got := DisplayFor(c.in)
		assert.Equal(t, c.avatar, got.Avatar, c.in)
		assert.Equal(t, c.name, got.Name, c.in)
	}
}

func TestAccountWay(t *testing.T) {
	way, err := AccountWay("13912345678")
	require.NoError(t, err)
	assert.Equal(t, 1, way)

	way, err = AccountWay(" a@b.cn ")
	require.NoError(t, err)
	assert.Equal(t, 2, way)

	_, err = AccountWay("12912345678")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = AccountWay("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.NoError(t, ValidateCode("1234"))
	assert.NoError(t, ValidateCode("123456"))
	assert.ErrorIs(t, ValidateCode("1234567"), ErrInvalidInput)
	assert.ErrorIs(t, ValidateCode("12a4"), ErrInvalidInput)
}
