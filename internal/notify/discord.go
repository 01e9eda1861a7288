package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Discord embed 颜色值。
const (
	colorInfo  = 0x00FF00
	colorWarn  = 0xFFB347
	colorError = 0xFF0000
)

// DiscordSink 通过 webhook 把通知投递到 Discord 频道。
type DiscordSink struct {
	webhookURL string
	client     *http.Client
}

var _ Sink = (*DiscordSink)(nil)

// NewDiscordSink 创建 Discord 通知渠道。timeout 小于等于 0 时取默认值 10 秒。
func NewDiscordSink(webhookURL string, timeout time.Duration) *DiscordSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DiscordSink{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Send 发送单条消息。
func (s *DiscordSink) Send(msg Message) error {
	color := colorInfo
	switch msg.Level {
	case LevelWarn:
		color = colorWarn
	case LevelError:
		color = colorError
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	body, err := json.Marshal(discordPayload{
		Embeds: []discordEmbed{{
			Title:       msg.Title,
			Description: msg.Body,
			Color:       color,
			Timestamp:   ts.Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("notify: 序列化消息失败: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: 调用 webhook 失败: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook 返回状态码 %d", resp.StatusCode)
	}

	return nil
}
