package hedge

import (
	"errors"
	"fmt"

	"order-router/internal/order"
)

// ErrNothingToClose 表示两侧台账均无敞口，关闭请求无事可做。
var ErrNothingToClose = errors.New("hedge: 两侧均无可平仓数量")

// LegFailureError 表示腿A成交后腿B失败。
// Compensated 为真时腿A敞口已反向平掉，但整个操作仍按失败上报。
type LegFailureError struct {
	Base        string
	Compensated bool
	Err         error
}

func (e *LegFailureError) Error() string {
	if e.Compensated {
		return fmt.Sprintf("hedge: %s 腿B失败，已平掉腿A敞口: %v", e.Base, e.Err)
	}
	return fmt.Sprintf("hedge: %s 腿B失败: %v", e.Base, e.Err)
}

func (e *LegFailureError) Unwrap() error {
	return e.Err
}

// CompensationError 表示补偿动作本身失败，台账与真实敞口已不一致，
// 必须人工介入，不得降级为普通错误。
type CompensationError struct {
	Base   string
	LegErr error
	Err    error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("hedge: %s 补偿失败，台账与真实敞口不一致，需人工处理: %v（腿B原始错误: %v）", e.Base, e.Err, e.LegErr)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// InconsistencyError 表示关闭请求发现单侧台账为空。
// 只上报、不自动修复：自动修复可能掩盖此前未被察觉的失败。
type InconsistencyError struct {
	Base string
	// EmptyVenues 为无可平仓数量的场所。
	EmptyVenues []order.Venue
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("hedge: %s 在 %v 无可平仓数量", e.Base, e.EmptyVenues)
}
