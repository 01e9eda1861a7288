package venue

import (
	"errors"
	"fmt"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"order-router/internal/order"
)

// ErrUnsupportedVenue 表示该场所没有可用的适配器。
var ErrUnsupportedVenue = errors.New("venue: 不支持的交易所")

// APIError 表示适配器调用失败，携带场所原生的错误信息。
// 不会被自动重试，按原样上抛给调用方。
type APIError struct {
	Venue  order.Venue
	Op     string
	Detail string
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue: %s %s 调用失败: %s", e.Venue, e.Op, e.Detail)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// wrapAPIError 把底层错误包装为 APIError，并尽量提取 ccxt 的原生错误内容。
func wrapAPIError(v order.Venue, op string, err error) *APIError {
	detail := err.Error()

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = detail
		}
		detail = fmt.Sprintf("%s: %s", ccxtErr.Type, message)
	}

	return &APIError{
		Venue:  v,
		Op:     op,
		Detail: detail,
		Err:    err,
	}
}
