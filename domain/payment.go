package domain

import "github.com/shopspring/decimal"

type PaymentStatus int

const (
	PaymentStatusPending   PaymentStatus = 0
	PaymentStatusPaid      PaymentStatus = 1
	PaymentStatusCancelled PaymentStatus = 2
	PaymentStatusExpired   PaymentStatus = 3
	PaymentStatusFailed    PaymentStatus = 4
)

// Terminal reports whether no further transition is expected; only Pending keeps polling.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

func (s PaymentStatus) Desc() string {
	switch s {
	case PaymentStatusPending:
		return "待支付"
	case PaymentStatusPaid:
		return "已支付"
	case PaymentStatusCancelled:
		return "已取消"
	case PaymentStatusExpired:
		return "已过期"
	case PaymentStatusFailed:
		return "支付失败"
	default:
		return "未知"
	}
}

// PaymentSession lives only in memory while a top-up is being polled.
type PaymentSession struct {
	PaymentNo string          `json:"paymentNo"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	PayURL    string          `json:"payUrl,omitempty"`
}
