package sync

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/twmb/franz-go/pkg/kgo"
)

// DeliveryEvent announces a successful delivery to other back-office systems.
type DeliveryEvent struct {
	ObjectID    string    `json:"object"`
	CaseType    string    `json:"caseType"`
	Source      string    `json:"source"`
	Entity      string    `json:"entity"`
	Mapping     string    `json:"mapping"`
	StatusCode  int       `json:"statusCode"`
	Hash        string    `json:"hash"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type DeliveryPublisher interface {
	Publish(ctx context.Context, event DeliveryEvent) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event DeliveryEvent) error {
	return nil
}

// KafkaPublisher writes delivery events to a Kafka topic keyed by object id.
type KafkaPublisher struct {
	client *kgo.Client
}

// NewKafkaPublisher returns nil when no brokers are configured.
func NewKafkaPublisher(cfg EventsConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "zgw2vrijbrp.deliveries"
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event DeliveryEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode delivery event: %w", err)
	}
	record := &kgo.Record{Key: []byte(event.ObjectID), Value: value}
	if err = p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish delivery event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
