package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// LogSink writes alerts to the logger instead of a broker. Used when no
// notification broker is configured.
type LogSink struct {
	Log logrus.FieldLogger
}

func (s LogSink) Publish(_ context.Context, destination, text string) error {
	s.Log.WithField("destination", destination).Infof("[alert] %s", text)
	return nil
}

func (s LogSink) Close() error { return nil }

// RedisSink publishes alerts on a Redis pub/sub channel named by the
// destination.
type RedisSink struct {
	client *redis.Client
}

// RedisOptions holds the connection settings for NewRedisSink.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(opts RedisOptions) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return &RedisSink{client: client}, nil
}

func (s *RedisSink) Publish(ctx context.Context, destination, text string) error {
	if err := s.client.Publish(ctx, destination, text).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", destination, err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.client.Close() }

// ServiceBusSink sends each alert as a message on the Azure Service Bus
// queue or topic named by the destination.
type ServiceBusSink struct {
	client *azservicebus.Client

	mu      sync.Mutex
	senders map[string]*azservicebus.Sender
}

// NewServiceBusSink creates a client from a connection string. Senders
// are opened lazily per destination.
func NewServiceBusSink(connectionString string) (*ServiceBusSink, error) {
	client, err := azservicebus.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create service bus client: %w", err)
	}
	return &ServiceBusSink{
		client:  client,
		senders: make(map[string]*azservicebus.Sender),
	}, nil
}

func (s *ServiceBusSink) sender(destination string) (*azservicebus.Sender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snd, ok := s.senders[destination]; ok {
		return snd, nil
	}
	snd, err := s.client.NewSender(destination, nil)
	if err != nil {
		return nil, fmt.Errorf("create service bus sender %s: %w", destination, err)
	}
	s.senders[destination] = snd
	return snd, nil
}

func (s *ServiceBusSink) Publish(ctx context.Context, destination, text string) error {
	snd, err := s.sender(destination)
	if err != nil {
		return err
	}
	msg := &azservicebus.Message{
		Body: []byte(text),
		ApplicationProperties: map[string]any{
			"source": "bambu-relay",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := snd.SendMessage(ctx, msg, nil); err != nil {
		return fmt.Errorf("service bus send %s: %w", destination, err)
	}
	return nil
}

func (s *ServiceBusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for name, snd := range s.senders {
		_ = snd.Close(ctx)
		delete(s.senders, name)
	}
	return s.client.Close(ctx)
}
