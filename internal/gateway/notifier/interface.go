package notifier

import "context"

// TextNotifier 是最小的文本推送接口，组件只依赖它而不依赖具体实现（如 ntfy）。
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// MessageNotifier 额外支持带标题/标签的结构化消息。
type MessageNotifier interface {
	TextNotifier
	Send(ctx context.Context, msg StructuredMessage) error
}
