// Package mqtt provides MQTT client connectivity to the Sunseeker cloud broker.
//
// This package manages:
//   - Connection to the regional cloud broker with auto-reconnect
//   - Topic subscriptions for per-account push updates
//   - Connection health monitoring
//
// # Architecture
//
// The Sunseeker cloud pushes mower state changes over MQTT. Each
// account has a single push topic that carries updates for every
// device on the account:
//
//	Mower -> Sunseeker Cloud -> MQTT Broker -> sunseekerd
//
// Commands travel in the opposite direction over HTTP only; this
// client never publishes.
//
// Legacy mowers use a shared application login on the legacy broker.
// Wireless mowers use a per-session password that the cloud client
// registers with the API before connecting. Both are expressed as a
// Credentials value resolved by the cloud package.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, session.BrokerCredentials())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.AppTopic(session.UserID), 0,
//	    func(topic string, payload []byte) error {
//	        return engine.HandleMessage(payload)
//	    })
package mqtt
