package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"roadsense/go-hub-server/internal/source"
)

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	accelFile := flag.String("accelerometer", "data/accelerometer.csv", "Accelerometer CSV file")
	gpsFile := flag.String("gps", "data/gps.csv", "GPS CSV file")
	parkingFile := flag.String("parking", "data/parking.csv", "Parking CSV file")
	userID := flag.Int64("user-id", 42, "Vehicle user identifier")
	interval := flag.Duration("interval", time.Second, "Interval between published readings")

	flag.Parse()

	src := source.New(*accelFile, *gpsFile, *parkingFile, *userID)
	if err := src.Open(); err != nil {
		log.Fatalf("failed to open sensor files: %v", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("close source: %v", err)
		}
	}()

	clientID := fmt.Sprintf("agent-sim-%d-%d", *userID, time.Now().UnixNano())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	topic := fmt.Sprintf("vehicles/%d/readings", *userID)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	publish := func() {
		reading, err := src.Read()
		if err != nil {
			var malformed *source.MalformedRecordError
			if errors.As(err, &malformed) {
				log.Printf("skipping malformed %s record at row %d: %v", malformed.Stream, malformed.Row, malformed.Err)
				src.Skip()
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		data, err := json.Marshal(reading)
		if err != nil {
			log.Printf("failed to encode reading: %v", err)
			return
		}

		token := client.Publish(topic, 0, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return
		}
		log.Printf("published %s z=%d", topic, reading.Accelerometer.Z)
	}

	publish()

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			publish()
		}
	}
}
