package push

import "context"

// Notification 是设备上展示的通知内容
type Notification struct {
	Title       string
	Body        string
	ClickAction string
}

// Message 是一次推送的完整内容，Data 中的值都是字符串
type Message struct {
	Notification Notification
	Data         map[string]string
}

// ResultItem 对应单个目标的投递结果
type ResultItem struct {
	Error string
}

// SendResult 是推送通道返回的投递统计
type SendResult struct {
	SuccessCount int
	FailureCount int
	Results      []ResultItem
}

// Transport 向单个设备 token 投递消息
type Transport interface {
	Send(ctx context.Context, token string, msg Message) (*SendResult, error)
}
