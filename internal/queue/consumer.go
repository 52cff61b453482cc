package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// SampleHandler 样本处理函数。
// 返回错误表示样本处理失败——消息被 Nack 且不重新入队，
// 失败诊断由处理函数自己落库，队列不负责重试语义。
type SampleHandler func(ctx context.Context, msg *SampleMessage) error

// Consumer 任务消费者：固定大小 worker 池消费提取队列
type Consumer struct {
	client  *Client
	handler SampleHandler
	workers int
	logger  *logrus.Logger
	wg      sync.WaitGroup
}

// NewConsumer 创建消费者
func NewConsumer(client *Client, handler SampleHandler, workers int, logger *logrus.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		client:  client,
		handler: handler,
		workers: workers,
		logger:  logger,
	}
}

// Start 启动消费 worker。ctx 取消后 worker 处理完手头消息即退出。
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.client.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.WithField("workers", c.workers).Info("Extraction queue consumer started")

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, msgs)
	}
	return nil
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.WithField("worker_id", id).Info("Queue worker stopped")
			return
		case delivery, ok := <-msgs:
			if !ok {
				c.logger.WithField("worker_id", id).Warn("Message channel closed")
				return
			}
			c.process(ctx, id, delivery)
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, delivery amqp.Delivery) {
	start := time.Now()

	var msg SampleMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.WithError(err).Error("Failed to unmarshal sample message")
		delivery.Nack(false, false)
		return
	}

	c.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"task_id":   msg.TaskID,
		"apk_name":  msg.APKName,
	}).Info("Processing queued sample")

	if err := c.handler(ctx, &msg); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"worker_id": workerID,
			"task_id":   msg.TaskID,
		}).Error("Queued sample failed")
		delivery.Nack(false, false)
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.WithError(err).Error("Failed to acknowledge message")
	}

	c.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"task_id":   msg.TaskID,
		"duration":  time.Since(start).Seconds(),
	}).Info("Queued sample completed")
}

// Stop 等待所有 worker 退出
func (c *Consumer) Stop() {
	c.wg.Wait()
	c.logger.Info("Extraction queue consumer stopped")
}
