package recharge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("充值金额无效")

var (
	MinAmount = decimal.NewFromInt(1)
	MaxAmount = decimal.NewFromInt(10000)
)

// ParseAmount reads a yuan amount as typed; "元" suffixes are tolerated.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "元"))
	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: 请输入有效的充值金额", ErrInvalidAmount)
	}
	if amount.LessThan(MinAmount) {
		return decimal.Zero, fmt.Errorf("%w: 充值金额最少为1元", ErrInvalidAmount)
	}
	if amount.GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: 单次充值金额不能超过10000元", ErrInvalidAmount)
	}
	return amount, nil
}

// FormatYuan renders an amount with two decimals, as receipts show it.
func FormatYuan(d decimal.Decimal) string {
	return d.StringFixed(2)
}
