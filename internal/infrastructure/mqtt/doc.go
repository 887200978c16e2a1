// Package mqtt connects the installer console to the site MQTT broker.
//
// The console only listens: the committer that writes placements announces
// each commit on graylogic/core/central/{id}/placement/committed, and the
// allocator invalidates its cached snapshot for that central when one arrives.
//
// The client reconnects automatically, restores subscriptions after a
// reconnect and publishes a retained online/offline status with an LWT.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCentralPlacementCommits(), 1,
//	    func(topic string, payload []byte) error {
//	        return listener.HandleMessage(topic, payload)
//	    })
package mqtt
