package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"roadsense/go-hub-server/internal/model"
	"roadsense/go-hub-server/internal/pipeline"
)

// startIngest connects to the configured MQTT broker and subscribes to
// the vehicle readings topic. Each payload runs through the same
// classify, persist and fan-out path as the in-process drivers.
func (a *App) startIngest() (mqtt.Client, error) {
	clientID := fmt.Sprintf("roadsense-hub-%d", time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(a.cfg.MQTTBrokerURL).SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}

	if token := client.Subscribe(a.cfg.MQTTTopic, 0, a.handleVehicleReading); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", a.cfg.MQTTTopic, token.Error())
	}

	a.logger.Info("mqtt ingest started", "broker", a.cfg.MQTTBrokerURL, "topic", a.cfg.MQTTTopic)
	return client, nil
}

func (a *App) handleVehicleReading(_ mqtt.Client, msg mqtt.Message) {
	var reading model.AggregatedReading
	if err := json.Unmarshal(msg.Payload(), &reading); err != nil {
		a.logger.Warn("mqtt payload decode failed", "topic", msg.Topic(), "error", err)
		return
	}

	if reading.UserID == 0 {
		// Topics look like vehicles/<user_id>/readings.
		parts := strings.Split(msg.Topic(), "/")
		if len(parts) >= 2 {
			if id, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
				reading.UserID = id
			}
		}
	}
	if reading.UserID <= 0 {
		a.logger.Warn("mqtt payload missing user id", "topic", msg.Topic())
		return
	}

	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	record := pipeline.Process(reading)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stored, err := a.store.CreateBatch(ctx, []model.ProcessedRecord{record})
	if err != nil {
		a.logger.Error("failed to persist vehicle reading", "user_id", record.UserID, "error", err)
		return
	}

	a.hub.Publish(stored[0].UserID, stored[0])
	a.logger.Info("ingested vehicle reading", "user_id", stored[0].UserID, "road_state", stored[0].RoadState)
}
