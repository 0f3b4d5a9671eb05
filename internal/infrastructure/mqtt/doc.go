// Package mqtt provides MQTT client connectivity for Gray Logic Access.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Gray Logic uses MQTT as the internal message bus. The access service
// consumes retained area configuration published by the core and publishes
// its own access events (pairing, credential lifecycle, client presence)
// for other services to observe.
//
//	Gray Logic Core ↔ MQTT Broker ↔ Gray Logic Access
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all retained area configs
//	err = client.Subscribe(mqtt.Topics{}.AllAreaConfigs(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish an access event
//	topic := mqtt.Topics{}.AccessEvent("pairing_completed")
//	client.Publish(topic, []byte(`{"client_id":"cli-a1b2c3d4"}`), 1, false)
package mqtt
