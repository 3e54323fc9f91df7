// shared/kafka/producer.go
package kafka

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.AsyncProducer
}

func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal       // Balance speed and reliability
	config.Producer.Compression = sarama.CompressionSnappy   // Better throughput
	config.Producer.Flush.Frequency = 500 * time.Millisecond // Batch messages
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	// Handle errors in separate goroutine
	go func() {
		for err := range producer.Errors() {
			slog.Error("failed to send kafka message", "error", err)
		}
	}()

	return &Producer{producer: producer}, nil
}

func (p *Producer) Publish(topic string, message any) {
	bytes, err := json.Marshal(message)
	if err != nil {
		slog.Error("failed to encode kafka message", "topic", topic, "error", err)
		return
	}
	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(bytes),
	}
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
