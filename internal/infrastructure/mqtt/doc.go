// Package mqtt connects the gateway to the home's MQTT broker.
//
// The broker is where device state lives: bridges for the physical devices
// publish retained point values to <prefix>/state/<point> and accept writes
// on <prefix>/set/<point>. The gateway's point store reads and writes
// through this client; the gateway also publishes its own online status
// (with a Last Will for crashes) and the provider link connectivity flag.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return fmt.Errorf("connecting to MQTT: %w", err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllStates(), 1,
//	    func(topic string, payload []byte) error {
//	        return nil
//	    })
//
// Subscriptions are tracked and restored after a reconnect.
package mqtt
