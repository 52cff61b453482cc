package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// SampleMessage 提取任务消息
type SampleMessage struct {
	TaskID  string `json:"task_id"`
	APKName string `json:"apk_name"`
	APKPath string `json:"apk_path"`
	Label   int    `json:"label"`
}

// Producer 任务生产者
type Producer struct {
	client *Client
	logger *logrus.Logger
}

// NewProducer 创建生产者
func NewProducer(client *Client, logger *logrus.Logger) *Producer {
	return &Producer{client: client, logger: logger}
}

// PublishSample 把一个样本投入提取队列
func (p *Producer) PublishSample(ctx context.Context, msg *SampleMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := p.client.Publish(ctx, body); err != nil {
		p.logger.WithError(err).WithField("apk_name", msg.APKName).Error("Failed to publish sample")
		return fmt.Errorf("failed to publish: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"task_id":  msg.TaskID,
		"apk_name": msg.APKName,
	}).Info("Sample published to extraction queue")

	return nil
}
