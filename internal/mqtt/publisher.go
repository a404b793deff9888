package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"batteryctl/internal/logger"
	"batteryctl/internal/model"
)

// PlanMessage is the retained payload published after each evaluation.
type PlanMessage struct {
	EvaluatedAt   time.Time    `json:"evaluated_at"`
	Action        model.Action `json:"action"`
	TargetSoc     int          `json:"target_soc"`
	CurrentSoc    *float64     `json:"current_soc,omitempty"`
	Applied       bool         `json:"applied"`
	Reason        string       `json:"reason,omitempty"`
	ProjectedCost float64      `json:"projected_cost_eur"`
	AveragePrice  float64      `json:"average_price_eur_per_kwh"`
}

// Publisher pushes plan messages to interested consumers.
type Publisher interface {
	PublishPlan(msg PlanMessage) error
	Close()
}

// Config holds broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	Username string
	Password string
}

// PahoPublisher publishes retained plan messages over MQTT.
type PahoPublisher struct {
	client paho.Client
	topic  string
	log    zerolog.Logger
}

// NewPahoPublisher connects to the broker and returns a ready publisher.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}

	return &PahoPublisher{
		client: client,
		topic:  cfg.Topic,
		log:    logger.New("mqtt-publisher"),
	}, nil
}

// PublishPlan publishes msg retained, so late subscribers see the current plan.
func (p *PahoPublisher) PublishPlan(msg PlanMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode plan message: %w", err)
	}
	token := p.client.Publish(p.topic, 1, true, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	p.log.Debug().Str("topic", p.topic).Str("action", string(msg.Action)).Msg("plan published")
	return nil
}

func (p *PahoPublisher) Close() {
	p.client.Disconnect(250)
}

// MockPublisher records published messages for tests.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []PlanMessage
	Err      error
}

func (m *MockPublisher) PublishPlan(msg PlanMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *MockPublisher) Close() {}

// Published returns a copy of the captured messages.
func (m *MockPublisher) Published() []PlanMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlanMessage, len(m.Messages))
	copy(out, m.Messages)
	return out
}
