package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"

	"taskdesk/store"
)

// CookieKey is the durable key holding the backend session cookies.
const CookieKey = "cookies"

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// persistentJar mirrors cookies for the API origin into a KV so the server
// session outlives the process.
type persistentJar struct {
	mu   sync.Mutex
	jar  *cookiejar.Jar
	base *url.URL
	kv   store.KV
}

func newPersistentJar(base *url.URL, kv store.KV) (*persistentJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	j := &persistentJar{jar: jar, base: base, kv: kv}
	j.restore()
	return j, nil
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	j.persistLocked()
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Reset drops every cookie, in memory and in the KV.
func (j *persistentJar) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		j.jar = jar
	}
	if j.kv != nil {
		if err := j.kv.Delete(CookieKey); err != nil {
			slog.Warn("cookie jar: delete failed", "err", err)
		}
	}
}

func (j *persistentJar) restore() {
	if j.kv == nil {
		return
	}
	raw, ok, err := j.kv.Get(CookieKey)
	if err != nil {
		slog.Warn("cookie jar: load failed", "err", err)
		return
	}
	if !ok || raw == "" {
		return
	}
	var saved []savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		slog.Warn("cookie jar: stored value unreadable, ignoring", "err", err)
		return
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if c.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.jar.SetCookies(j.base, cookies)
}

func (j *persistentJar) persistLocked() {
	if j.kv == nil {
		return
	}
	current := j.jar.Cookies(j.base)
	if len(current) == 0 {
		if err := j.kv.Delete(CookieKey); err != nil {
			slog.Warn("cookie jar: delete failed", "err", err)
		}
		return
	}
	saved := make([]savedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, savedCookie{Name: c.Name, Value: c.Value})
	}
	b, err := json.Marshal(saved)
	if err != nil {
		return
	}
	if err := j.kv.Set(CookieKey, string(b)); err != nil {
		slog.Warn("cookie jar: save failed", "err", err)
	}
}
