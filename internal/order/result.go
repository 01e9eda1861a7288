package order

// Result 是归一化后的下单结果。可选字段缺失表示交易所未同步上报，
// 下游必须按"未知"处理，不得当作 0。
type Result struct {
	OrderID string

	// FilledAmount 为实际成交数量（按张计价的场所为张数）。
	FilledAmount *float64

	// Cost 为实际花费的名义金额。
	Cost *float64

	// Price 为成交均价。
	Price *float64

	// AmountByPercent 为适配器按比例折算出的数量，
	// 仅在按比例下单且适配器可以预先算出数量时出现。
	AmountByPercent *float64

	// Raw 保留交易所原始响应，供通知与排障使用。
	Raw map[string]interface{}
}

// FloatPtr 返回 float64 指针，便于构造可选字段。
func FloatPtr(v float64) *float64 {
	return &v
}

// Int64Ptr 返回 int64 指针。
func Int64Ptr(v int64) *int64 {
	return &v
}
