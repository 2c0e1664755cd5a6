package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/SnailyCAD/snaily-cadv4-sub005/internal/config"
)

// Publisher 报警按钮 MQTT 推送器
// 面向调度台之外的告警硬件（声光报警器等），默认禁用
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

// NewPublisher 创建MQTT推送器并连接broker
func NewPublisher(cfg config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout: %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
	}

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		logger: logger,
	}, nil
}

// PanicAlert 报警消息体
type PanicAlert struct {
	UnitID    string    `json:"unit_id"`
	Callsign  string    `json:"callsign"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishPanic 推送报警开/关消息（尽力而为）
func (p *Publisher) PublishPanic(alert PanicAlert) {
	body, err := json.Marshal(alert)
	if err != nil {
		p.logger.Error("failed to marshal panic alert", zap.Error(err))
		return
	}

	token := p.client.Publish(p.topic, p.qos, false, body)
	go func() {
		if token.Wait() && token.Error() != nil {
			p.logger.Warn("failed to publish panic alert", zap.Error(token.Error()))
		}
	}()
}

// Close 断开MQTT连接
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
