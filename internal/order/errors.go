package order

// ValidationError 表示订单意图本身不合法，在产生任何副作用之前被拒绝。
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "order: 校验失败: " + e.Reason
}
