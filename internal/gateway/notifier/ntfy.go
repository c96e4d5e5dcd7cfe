package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultNtfyServer = "https://ntfy.sh"

// Ntfy 通过 HTTP POST 把消息推送到 ntfy 主题。
type Ntfy struct {
	Server   string
	Topic    string
	Token    string
	Priority int
	Client   *http.Client

	// RetryDelay 是线性退避的基数，第 i 次失败后等待 (i+1)*RetryDelay。
	RetryDelay time.Duration
}

func NewNtfy(server, topic, token string, priority int) *Ntfy {
	if strings.TrimSpace(server) == "" {
		server = DefaultNtfyServer
	}
	return &Ntfy{
		Server:     strings.TrimRight(server, "/"),
		Topic:      strings.TrimSpace(topic),
		Token:      strings.TrimSpace(token),
		Priority:   priority,
		Client:     &http.Client{Timeout: 15 * time.Second},
		RetryDelay: time.Second,
	}
}

// SendText 发送纯文本消息（最多 3 次尝试）。
func (n *Ntfy) SendText(ctx context.Context, text string) error {
	return n.post(ctx, "", nil, 0, text, false)
}

// Send 发送结构化消息。
func (n *Ntfy) Send(ctx context.Context, msg StructuredMessage) error {
	return n.post(ctx, msg.Title, msg.Tags, msg.Priority, msg.RenderMarkdown(), true)
}

func (n *Ntfy) post(ctx context.Context, title string, tags []string, priority int, body string, markdown bool) error {
	if n.Topic == "" {
		return fmt.Errorf("ntfy 配置不完整: topic 为空")
	}
	url := n.Server + "/" + n.Topic
	if priority <= 0 {
		priority = n.Priority
	}

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		if title != "" {
			req.Header.Set("Title", title)
		}
		if len(tags) > 0 {
			req.Header.Set("Tags", strings.Join(tags, ","))
		}
		if priority > 0 {
			req.Header.Set("Priority", strconv.Itoa(priority))
		}
		if markdown {
			req.Header.Set("Markdown", "yes")
		}
		if n.Token != "" {
			req.Header.Set("Authorization", "Bearer "+n.Token)
		}
		resp, err := n.Client.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode/100 == 2 {
				return nil
			}
			err = fmt.Errorf("ntfy status=%d", resp.StatusCode)
		}
		lastErr = err
		if i == 2 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * n.RetryDelay):
		}
	}
	return lastErr
}
