package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"oculoo/pkg/config"
)

// multicastClient 由 *messaging.Client 实现
type multicastClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMTransport 通过 Firebase Cloud Messaging 投递
type FCMTransport struct {
	client multicastClient
	logger *zap.Logger
}

// NewFCMTransport 使用服务账号凭证初始化 Firebase App
func NewFCMTransport(ctx context.Context, cfg config.FCMConfig, logger *zap.Logger) (*FCMTransport, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase messaging: %w", err)
	}

	logger.Info("FCM transport initialized", zap.String("project_id", cfg.ProjectID))
	return &FCMTransport{client: client, logger: logger}, nil
}

func (t *FCMTransport) Send(ctx context.Context, token string, msg Message) (*SendResult, error) {
	resp, err := t.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: []string{token},
		Notification: &messaging.Notification{
			Title: msg.Notification.Title,
			Body:  msg.Notification.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				ClickAction: msg.Notification.ClickAction,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Category: msg.Notification.ClickAction},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fcm send failed: %w", err)
	}

	result := &SendResult{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
		Results:      make([]ResultItem, 0, len(resp.Responses)),
	}
	for _, r := range resp.Responses {
		item := ResultItem{}
		if r != nil && r.Error != nil {
			item.Error = r.Error.Error()
		}
		result.Results = append(result.Results, item)
	}

	t.logger.Debug("FCM response",
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
	)
	return result, nil
}
