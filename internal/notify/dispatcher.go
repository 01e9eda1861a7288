package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Dispatcher 把通知异步投递到 Sink。
// Publish 永不阻塞：队列满时丢弃消息并记日志，下单路径不为通知买单。
type Dispatcher struct {
	sink   Sink
	queue  chan Message
	logger *zap.Logger
}

var _ Publisher = (*Dispatcher)(nil)

// NewDispatcher 创建通知分发器。buffer 小于等于 0 时取默认值 128。
func NewDispatcher(sink Sink, buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 128
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sink:   sink,
		queue:  make(chan Message, buffer),
		logger: logger,
	}
}

// Publish 入队一条通知。
func (d *Dispatcher) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("通知队列已满，消息被丢弃", zap.String("title", msg.Title))
	}
}

// Run 消费队列直到 ctx 结束，随后把已入队的消息发完再返回。
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg := <-d.queue:
					d.send(msg)
				default:
					return ctx.Err()
				}
			}
		case msg := <-d.queue:
			d.send(msg)
		}
	}
}

func (d *Dispatcher) send(msg Message) {
	if d.sink == nil {
		return
	}
	if err := d.sink.Send(msg); err != nil {
		d.logger.Warn("发送通知失败",
			zap.String("title", msg.Title),
			zap.Error(err),
		)
	}
}
