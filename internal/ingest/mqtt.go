package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"resq-backend/config"
)

// Subscriber feeds helmet telemetry published over MQTT into the ingest
// service. Payloads use the same JSON shape as POST /api/sensor-data.
type Subscriber struct {
	cfg    config.MQTTConfig
	svc    *Service
	log    *zap.Logger
	client mqtt.Client
}

// NewSubscriber creates a subscriber. Nothing connects until Run is called.
func NewSubscriber(cfg config.MQTTConfig, svc *Service, log *zap.Logger) *Subscriber {
	return &Subscriber{
		cfg: cfg,
		svc: svc,
		log: log.Named("mqtt"),
	}
}

// Run connects to the broker, subscribes to the telemetry topic and blocks
// until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("mqtt subscriber is disabled, not starting")
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	// Resubscribe after every (re)connect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := s.subscribe(ctx, c); err != nil {
			s.log.Error("subscribe failed", zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn("connection lost", zap.Error(err))
	})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	s.log.Info("mqtt subscriber started", zap.String("broker", s.cfg.Broker), zap.String("topic", s.cfg.Topic))

	<-ctx.Done()
	s.log.Info("mqtt subscriber shutting down")
	s.client.Disconnect(250)
	return nil
}

func (s *Subscriber) subscribe(ctx context.Context, c mqtt.Client) error {
	token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, func(c mqtt.Client, msg mqtt.Message) {
		s.onMessage(ctx, c, msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", s.cfg.Topic, token.Error())
	}
	return nil
}

func (s *Subscriber) onMessage(ctx context.Context, c mqtt.Client, topic string, payload []byte) {
	ack, helmet, err := s.HandleMessage(ctx, topic, payload)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			s.log.Warn("dropping malformed telemetry", zap.String("topic", topic), zap.Error(err))
		case errors.Is(err, ErrNotFound):
			s.log.Warn("dropping telemetry for unknown helmet", zap.String("topic", topic), zap.Error(err))
		default:
			s.log.Error("telemetry ingest failed", zap.String("topic", topic), zap.Error(err))
		}
		return
	}

	if s.cfg.AckTopicPrefix == "" {
		return
	}
	ackTopic := AckTopic(s.cfg.AckTopicPrefix, helmet)
	token := c.Publish(ackTopic, s.cfg.QoS, false, ack)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		s.log.Warn("ack publish failed", zap.String("topic", ackTopic), zap.Error(token.Error()))
	}
}

// HandleMessage ingests one MQTT payload and returns the JSON acknowledgment
// and the helmet it belongs to. A payload without helmet_number takes the
// helmet from the topic wildcard.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) ([]byte, string, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if p.HelmetNumber == "" {
		p.HelmetNumber = HelmetNumber(HelmetFromTopic(s.cfg.Topic, topic))
	}

	sample, err := p.Sample()
	if err != nil {
		return nil, "", err
	}

	res, err := s.svc.Ingest(ctx, sample)
	if err != nil {
		return nil, sample.HelmetNumber, err
	}

	ack, err := json.Marshal(res)
	if err != nil {
		return nil, sample.HelmetNumber, fmt.Errorf("failed to encode ack: %w", err)
	}
	return ack, sample.HelmetNumber, nil
}

// AckTopic is the topic a helmet listens on for ingest results.
func AckTopic(prefix, helmet string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + helmet + "/ack"
}
