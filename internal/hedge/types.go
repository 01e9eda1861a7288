// Package hedge 实现跨场所对冲的台账与两腿编排。
// 腿A在海外合约场所做空，腿B在本土现货场所买入，两腿以 saga 方式推进：
// 每个外部事实一经确认立即落账，腿B失败时按台账汇总反向平掉腿A。
package hedge

import "order-router/internal/order"

// Mode 表示对冲指令的方向。
type Mode string

const (
	ModeOn  Mode = "ON"
	ModeOff Mode = "OFF"
)

// Request 为一次对冲开启/关闭请求。
type Request struct {
	// Venue 为合约腿所在场所。
	Venue    order.Venue
	Base     string
	Quote    string
	Amount   *float64
	Leverage *int64
	Mode     Mode
}

// LegRecord 为台账中一条已开腿记录。
// 同一 base 在同一场所的全部记录之和才是权威的敞口数量，单条记录不是。
type LegRecord struct {
	ID     string
	Venue  order.Venue
	Base   string
	Quote  string
	Amount float64
}

// LegSummary 为按场所汇总的敞口与贡献记录。
type LegSummary struct {
	Amount float64
	IDs    []string
}

// sessionState 为单次对冲请求内部的状态机状态，仅存活于请求期间。
type sessionState string

const (
	stateIdle         sessionState = "IDLE"
	stateOpeningLegA  sessionState = "OPENING_LEG_A"
	stateLegARecorded sessionState = "LEG_A_RECORDED"
	stateOpeningLegB  sessionState = "OPENING_LEG_B"
	stateDone         sessionState = "DONE"
	stateCompensating sessionState = "COMPENSATING"
	stateCompensated  sessionState = "COMPENSATED"
	stateFailed       sessionState = "FAILED"
)

// session 跟踪一次对冲请求的推进，用于日志与错误上下文。
type session struct {
	base  string
	state sessionState
}

func newSession(base string) *session {
	return &session{base: base, state: stateIdle}
}

func (s *session) transition(next sessionState) {
	s.state = next
}
