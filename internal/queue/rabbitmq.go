// Package queue RabbitMQ 接入：watch 守护进程的分布式样本入口。
// 多台采集机往同一个队列投样本路径，一台提取机消费并产出特征行。
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Config RabbitMQ 连接配置
type Config struct {
	Host     string
	User     string
	Password string
	VHost    string
	Port     int
}

// Client RabbitMQ 客户端。队列为持久化队列，prefetch 与消费 worker 数匹配。
type Client struct {
	config    *Config
	queueName string
	prefetch  int
	logger    *logrus.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewClient 建立连接并声明队列
func NewClient(config *Config, queueName string, prefetch int, logger *logrus.Logger) (*Client, error) {
	if prefetch <= 0 {
		prefetch = 1
	}

	c := &Client{
		config:    config,
		queueName: queueName,
		prefetch:  prefetch,
		logger:    logger,
	}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.config.User, c.config.Password, c.config.Host, c.config.Port, c.config.VHost)

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if _, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	c.conn = conn
	c.channel = ch

	c.logger.WithFields(logrus.Fields{
		"host":     c.config.Host,
		"queue":    c.queueName,
		"prefetch": c.prefetch,
	}).Info("Connected to RabbitMQ")

	return nil
}

// Publish 发布持久化消息
func (c *Client) Publish(ctx context.Context, body []byte) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("channel is nil")
	}

	return ch.PublishWithContext(
		ctx,
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume 开始消费，返回投递通道
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return nil, fmt.Errorf("channel is nil")
	}

	return ch.Consume(
		c.queueName,
		"",    // consumer tag
		false, // auto-ack 关闭：处理完才确认
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
}

// Close 关闭连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.logger.Info("RabbitMQ connection closed")
}
