package tracking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCAP2/rigsync/pkg/core"
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// AnchorMessage is the payload of <prefix>/<landmark>. Rotation is x, y, z, w.
type AnchorMessage struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
}

// JointMessage is one entry of the <prefix>/joints payload.
type JointMessage struct {
	Name     string     `json:"name"`
	Rotation [4]float64 `json:"rotation"`
}

// TriggerMessage is the payload of <prefix>/trigger.
type TriggerMessage struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

// TriggerFunc receives attach and detach requests.
type TriggerFunc func(action, target string)

// JointFunc receives a local joint rotation.
type JointFunc func(name string, q mgl64.Quat)

// MQTTSource subscribes to tracking topics and writes anchors into a Store.
type MQTTSource struct {
	cfg    MQTTConfig
	store  *Store
	logger *slog.Logger

	mu        sync.RWMutex
	client    mqtt.Client
	onTrigger TriggerFunc
	onJoint   JointFunc
}

// NewMQTTSource creates a source writing into store.
func NewMQTTSource(cfg MQTTConfig, store *Store, logger *slog.Logger) *MQTTSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	return &MQTTSource{cfg: cfg, store: store, logger: logger}
}

// OnTrigger sets the trigger callback.
func (m *MQTTSource) OnTrigger(fn TriggerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrigger = fn
}

// OnJoint sets the joint rotation callback.
func (m *MQTTSource) OnJoint(fn JointFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onJoint = fn
}

// Topic returns the full topic for name.
func (m *MQTTSource) Topic(name string) string {
	return m.cfg.TopicPrefix + "/" + name
}

// Connect connects to the broker and subscribes to every tracking topic.
func (m *MQTTSource) Connect() error {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to %s: %w", m.cfg.Broker, token.Error())
	}
	m.logger.Info("connected to MQTT broker", "broker", m.cfg.Broker)

	subs := make(map[string]mqtt.MessageHandler, len(core.Landmarks)+2)
	for _, l := range core.Landmarks {
		subs[m.Topic(string(l))] = m.anchorHandler(l)
	}
	subs[m.Topic("joints")] = m.handleJoints
	subs[m.Topic("trigger")] = m.handleTrigger

	for topic, handler := range subs {
		token := client.Subscribe(topic, m.cfg.QoS, handler)
		token.Wait()
		if token.Error() != nil {
			client.Disconnect(250)
			return fmt.Errorf("subscribing to %s: %w", topic, token.Error())
		}
		m.logger.Debug("subscribed", "topic", topic)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()
	return nil
}

// Close disconnects from the broker.
func (m *MQTTSource) Close() {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
		m.logger.Info("disconnected from MQTT broker")
	}
}

func (m *MQTTSource) anchorHandler(l core.Landmark) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		a, err := DecodeAnchor(l, msg.Payload())
		if err != nil {
			m.logger.Warn("anchor unmarshal error", "topic", msg.Topic(), "error", err)
			return
		}
		if err := m.store.Update(a); err != nil {
			m.logger.Warn("anchor rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

func (m *MQTTSource) handleJoints(_ mqtt.Client, msg mqtt.Message) {
	var joints []JointMessage
	if err := json.Unmarshal(msg.Payload(), &joints); err != nil {
		m.logger.Warn("joints unmarshal error", "topic", msg.Topic(), "error", err)
		return
	}

	m.mu.RLock()
	fn := m.onJoint
	m.mu.RUnlock()
	if fn == nil {
		return
	}
	for _, j := range joints {
		fn(j.Name, quat(j.Rotation))
	}
}

func (m *MQTTSource) handleTrigger(_ mqtt.Client, msg mqtt.Message) {
	var t TriggerMessage
	if err := json.Unmarshal(msg.Payload(), &t); err != nil {
		m.logger.Warn("trigger unmarshal error", "topic", msg.Topic(), "error", err)
		return
	}
	t.Action = strings.ToLower(t.Action)
	if t.Action != "attach" && t.Action != "detach" {
		m.logger.Warn("unknown trigger action", "action", t.Action)
		return
	}

	m.mu.RLock()
	fn := m.onTrigger
	m.mu.RUnlock()
	if fn != nil {
		fn(t.Action, t.Target)
	}
}

// DecodeAnchor parses an AnchorMessage payload for landmark l.
func DecodeAnchor(l core.Landmark, payload []byte) (core.Anchor, error) {
	var msg AnchorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return core.Anchor{}, err
	}
	return core.Anchor{
		Landmark: l,
		Position: mgl64.Vec3(msg.Position),
		Rotation: quat(msg.Rotation),
	}, nil
}

// quat converts x, y, z, w to a unit quaternion; all zeros is the identity.
func quat(r [4]float64) mgl64.Quat {
	q := mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}
	if q.Len() == 0 {
		return mgl64.QuatIdent()
	}
	return q.Normalize()
}
