package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"taskdesk/domain"
)

// Verification code delivery channel for SendCode.
const (
	WayPhone = 1
	WayEmail = 2
)

func (c *Client) UserInfo(ctx context.Context) Result {
	return c.Call(ctx, http.MethodGet, "/user/info", nil)
}

// UserProfile returns user info plus the points balance (domain.Profile).
func (c *Client) UserProfile(ctx context.Context) Result {
	return c.Call(ctx, http.MethodGet, "/user/profile", nil)
}

func (c *Client) Logout(ctx context.Context) Result {
	return c.Call(ctx, http.MethodPost, "/user/logout", nil)
}

func (c *Client) SendCode(ctx context.Context, account string, way int) Result {
	return c.Call(ctx, http.MethodPost, "/user/send-code", map[string]any{
		"account": account,
		"way":     way,
	})
}

func (c *Client) Login(ctx context.Context, account, code string) Result {
	return c.CallStrict(ctx, http.MethodPost, "/user/login", map[string]any{
		"account": account,
		"code":    code,
	})
}

func (c *Client) PointsBalance(ctx context.Context) Result {
	return c.Call(ctx, http.MethodGet, "/points/balance", nil)
}

// CreateRecharge sends amount as a JSON number with the decimal's own precision.
func (c *Client) CreateRecharge(ctx context.Context, amount decimal.Decimal) Result {
	return c.Call(ctx, http.MethodPost, "/payment/recharge/pc", map[string]any{
		"amount": json.Number(amount.String()),
	})
}

func (c *Client) PaymentStatus(ctx context.Context, paymentNo string) Result {
	return c.Call(ctx, http.MethodGet, "/payment/status/"+url.PathEscape(paymentNo), nil)
}

func (c *Client) CancelPayment(ctx context.Context, paymentNo string) Result {
	return c.Call(ctx, http.MethodPost, "/payment/cancel/"+url.PathEscape(paymentNo), nil)
}

func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) Result {
	return c.Call(ctx, http.MethodPost, "/order/create", req)
}

func (c *Client) Order(ctx context.Context, orderNo string) Result {
	return c.Call(ctx, http.MethodGet, "/order/"+url.PathEscape(orderNo), nil)
}

func (c *Client) CancelOrder(ctx context.Context, orderNo string) Result {
	return c.Call(ctx, http.MethodPost, "/order/cancel/"+url.PathEscape(orderNo), nil)
}

func (c *Client) TaskByID(ctx context.Context, taskID string) Result {
	return c.Call(ctx, http.MethodGet, "/ai/task/query?taskId="+url.QueryEscape(taskID), nil)
}

func (c *Client) TaskByOrderNo(ctx context.Context, orderNo string) Result {
	return c.Call(ctx, http.MethodGet, "/ai/task/query-by-order?orderNo="+url.QueryEscape(orderNo), nil)
}
