package session

import (
	"regexp"
	"strings"
	"unicode"
)

var elevenDigits = regexp.MustCompile(`^\d{11}$`)

// AccountDisplay is the masked header text for an account.
type AccountDisplay struct {
	Avatar string
	Name   string
}

// DisplayFor masks phone numbers (182****5812), shows the local part of
// emails and shortens anything longer than 8 characters to 6 plus "...".
func DisplayFor(account string) AccountDisplay {
	if account == "" {
		return AccountDisplay{Avatar: "U", Name: DefaultAccountName}
	}
	if elevenDigits.MatchString(account) {
		return AccountDisplay{
			Avatar: account[:1],
			Name:   account[:3] + "****" + account[7:],
		}
	}
	if strings.Contains(account, "@") {
		local, _, _ := strings.Cut(account, "@")
		return AccountDisplay{
			Avatar: strings.ToUpper(firstRune(local)),
			Name:   shorten(local),
		}
	}
	avatar := firstRune(account)
	if r := []rune(avatar); len(r) == 1 && r[0] < unicode.MaxASCII && unicode.IsLetter(r[0]) {
		avatar = strings.ToUpper(avatar)
	}
	return AccountDisplay{Avatar: avatar, Name: shorten(account)}
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= 8 {
		return s
	}
	return string(r[:6]) + "..."
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
