// Package session keeps the local login identity and decides when it can be
// trusted without asking the server.
package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"taskdesk/domain"
	"taskdesk/store"
)

// Storage keys. account/userInfo/userId are durable; loginWarning goes to
// the warning store given to NewStore.
const (
	KeyAccount      = "account"
	KeyUserInfo     = "userInfo"
	KeyUserID       = "userId"
	KeyLoginWarning = "loginWarning"
)

// DefaultAccountName is stored when the profile carries no account.
const DefaultAccountName = "用户"

type Store struct {
	durable   store.KV
	warnings store.KV
}

// NewStore keeps the identity in durable and loginWarning in warnings. A nil
// warnings store keeps the flag in memory; pass durable when the flag must
// survive the process.
func NewStore(durable, warnings store.KV) *Store {
	if warnings == nil {
		warnings = store.NewInMemoryKV()
	}
	return &Store{durable: durable, warnings: warnings}
}

func (s *Store) get(kv store.KV, key string) string {
	v, ok, err := kv.Get(key)
	if err != nil {
		slog.Warn("session store: read failed", "key", key, "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Load returns the stored session. A userInfo value that does not parse
// yields a nil Profile, never an error.
func (s *Store) Load() domain.Session {
	sess := domain.Session{
		Account: s.get(s.durable, KeyAccount),
		UserID:  s.get(s.durable, KeyUserID),
	}
	if raw := s.get(s.durable, KeyUserInfo); raw != "" {
		var info domain.UserInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			slog.Warn("session store: userInfo unreadable", "err", err)
		} else {
			sess.Profile = &info
		}
	}
	return sess
}

func (s *Store) IsLoggedIn() bool {
	return s.get(s.durable, KeyAccount) != ""
}

func (s *Store) Save(sess domain.Session) error {
	if strings.TrimSpace(sess.Account) == "" {
		return errors.New("account 为空")
	}
	if sess.Profile != nil {
		b, err := json.Marshal(sess.Profile)
		if err != nil {
			return err
		}
		if err := s.durable.Set(KeyUserInfo, string(b)); err != nil {
			return err
		}
	}
	if sess.UserID != "" {
		if err := s.durable.Set(KeyUserID, sess.UserID); err != nil {
			return err
		}
	}
	return s.durable.Set(KeyAccount, sess.Account)
}

// SaveProfile refreshes the cached profile from a /user/profile answer.
func (s *Store) SaveProfile(info domain.UserInfo) (string, error) {
	account := strings.TrimSpace(info.Account)
	if account == "" {
		account = DefaultAccountName
	}
	err := s.Save(domain.Session{
		Account: account,
		UserID:  info.UserID.String(),
		Profile: &info,
	})
	return account, err
}

func (s *Store) Clear() error {
	return errors.Join(
		s.durable.Delete(KeyUserInfo),
		s.durable.Delete(KeyUserID),
		s.durable.Delete(KeyAccount),
	)
}

func (s *Store) Warning() bool {
	return s.get(s.warnings, KeyLoginWarning) == "true"
}

func (s *Store) SetWarning() error {
	return s.warnings.Set(KeyLoginWarning, "true")
}

func (s *Store) ClearWarning() error {
	return s.warnings.Delete(KeyLoginWarning)
}
