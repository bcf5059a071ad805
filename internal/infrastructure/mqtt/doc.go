// Package mqtt provides MQTT client connectivity for lightrelay.
//
// The client keeps one auto-reconnecting link to the broker, replays its
// subscriptions after every reconnect and holds a will on the status topic.
// Every topic it touches is classified by Classify into a kind of relay
// traffic, which decides whether the message may be retained and which
// error a failed publish wraps.
//
// # Architecture
//
// The broker carries two kinds of traffic for the relay: chat commands from
// clients that do not use Discord, and outbound fleet state and command
// events for dashboards and home automation.
//
//	chat clients ──▶ lightrelay/chat/command ──▶ relay ──▶ bulbs
//	             ◀── lightrelay/chat/reply/{id} ◀─┘
//	                 lightrelay/state/fleet (retained)
//	                 lightrelay/event/command
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on the same host (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anyone who can publish to the command topic can change the lights
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ChatCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
//
//	err = client.Publish(mqtt.Topics{}.FleetState(), state, 1, true)
//	if errors.Is(err, mqtt.ErrFleetStatePublish) {
//	    // the retained state is stale until the next color command
//	}
package mqtt
