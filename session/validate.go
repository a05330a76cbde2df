package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"taskdesk/gateway"
)

var (
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^\d{4,6}$`)
)

var ErrInvalidInput = errors.New("输入错误")

// AccountWay classifies account as phone or email and returns the matching
// verification channel.
func AccountWay(account string) (int, error) {
	account = strings.TrimSpace(account)
	switch {
	case account == "":
		return 0, fmt.Errorf("%w: 请输入手机号或邮箱", ErrInvalidInput)
	case phonePattern.MatchString(account):
		return gateway.WayPhone, nil
	case strings.Contains(account, "@"):
		if emailPattern.MatchString(account) {
			return gateway.WayEmail, nil
		}
		return 0, fmt.Errorf("%w: 请输入正确的邮箱地址", ErrInvalidInput)
	default:
		return 0, fmt.Errorf("%w: 请输入正确的手机号", ErrInvalidInput)
	}
}

func ValidateCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: 请输入验证码", ErrInvalidInput)
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: 验证码格式不正确", ErrInvalidInput)
	}
	return nil
}
