// Package apicode maps the backend's numeric result codes to display messages.
package apicode

import (
	"embed"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

const (
	Success     = 200
	Network     = -1
	NotLoggedIn = 10003
)

const DefaultLang = "zh-CN"

// SuccessMessage is the exact message a strict call requires alongside Success.
const SuccessMessage = "操作成功"

var allowLang = map[string]bool{
	"zh-CN": true,
	"en":    true,
}

var (
	//go:embed *.toml
	f embed.FS

	bundleOnce sync.Once
	bundle     *i18n.Bundle
)

func loadBundle() *i18n.Bundle {
	bundleOnce.Do(func() {
		bundle = i18n.NewBundle(language.MustParse(DefaultLang))
		bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		for lang := range allowLang {
			path := lang + ".toml"
			if _, err := bundle.LoadMessageFileFS(f, path); err != nil {
				slog.Error("failed to load code table", "lang", lang, "file", path, "err", err)
			}
		}
	})
	return bundle
}

// Table resolves codes and gateway fallback texts for one language.
type Table struct {
	lang      string
	localizer *i18n.Localizer
}

// New returns the table for lang. Unknown languages fall back to zh-CN.
func New(lang string) *Table {
	lang = strings.TrimSpace(lang)
	if !allowLang[lang] {
		lang = DefaultLang
	}
	return &Table{lang: lang, localizer: i18n.NewLocalizer(loadBundle(), lang)}
}

func (t *Table) Lang() string {
	if t == nil {
		return DefaultLang
	}
	return t.lang
}

// Lookup reports the message for code, if the table has one.
func (t *Table) Lookup(code int) (string, bool) {
	msg, err := t.localize("code."+strconv.Itoa(code), nil)
	if err != nil || msg == "" {
		return "", false
	}
	return msg, true
}

func (t *Table) NetworkError(refused bool) string {
	if refused {
		return t.text("net.refused", nil)
	}
	return t.text("net.unreachable", nil)
}

func (t *Table) RequestFailed(status int) string {
	return t.text("request.failed", map[string]any{"Status": status})
}

func (t *Table) OperationFailed() string {
	return t.text("op.failed", nil)
}

func (t *Table) OperationFailedCode(code int) string {
	return t.text("op.failed.code", map[string]any{"Code": code})
}

func (t *Table) OK() string {
	return t.text("op.ok", nil)
}

func (t *Table) text(id string, data map[string]any) string {
	msg, err := t.localize(id, data)
	if err != nil {
		slog.Warn("code table: missing message", "id", id, "err", err)
		return id
	}
	return msg
}

func (t *Table) localize(id string, data map[string]any) (string, error) {
	if t == nil || t.localizer == nil {
		t = New(DefaultLang)
	}
	return t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
}
