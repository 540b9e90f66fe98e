// Package mqtt provides the MQTT client SEP2 Core uses as its
// distributed task transport.
//
// When notification.queue is "mqtt", check and transmit tasks are
// published to <prefix>/tasks/<name> and consumed by every core process
// subscribed to <prefix>/tasks/+. The client also maintains a retained
// online/offline status on <prefix>/system/status, backed by a Last Will
// so consumers can see a crashed node.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Prefix: cfg.Notification.TopicPrefix})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// # Security Considerations
//
//   - Use TLS (mqtt.broker.tls) outside a trusted network
//   - Task payloads include notification bodies and subscriber URIs
//   - Broker ACLs should restrict the task topics to core nodes
package mqtt
