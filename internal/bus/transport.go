package bus

// Transport is a publish/subscribe connection. The MQTT and NATS clients
// both satisfy it.
type Transport interface {
	Send(topic string, payload []byte) error
	Listen(topic string, handler func(topic string, payload []byte) error) error
}
