package notify

import "time"

// Level 表示通知级别，决定消息在下游的呈现颜色。
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Message 为一条待发送的通知。
type Message struct {
	Level     Level
	Title     string
	Body      string
	Timestamp time.Time
}

// Publisher 接收通知消息。实现不得阻塞调用方。
type Publisher interface {
	Publish(msg Message)
}

// Sink 把消息投递到具体的下游渠道。
type Sink interface {
	Send(msg Message) error
}
