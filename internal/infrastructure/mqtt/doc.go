// Package mqtt connects the telemetry hub to an MQTT broker.
//
// The client wraps paho.mqtt.golang and adds:
//   - auto-reconnect with subscription restore
//   - a retained hub status topic backed by Last Will and Testament
//   - publish and subscribe input validation
//   - panic recovery around message handlers
//
// Send and Listen use the configured QoS and make the client usable as a
// bus transport for the device, state, event and action topics.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.Bus.Topics)
//	err = client.Listen(topics.Events(), func(topic string, payload []byte) error {
//	    return consumer.Handle(topic, payload)
//	})
package mqtt
