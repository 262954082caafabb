// Package transport provides MQTT connectivity between the service and
// the reader fleet.
//
// Readers publish status reports to acs/report/<serial>; the service
// publishes state commands to acs/command/<serial> and identify requests
// to acs/identify/<serial>. The broker decouples the service from device
// firmware: a reader that is briefly offline picks up its queued command
// when it reconnects.
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration, Last Will and Testament for service offline detection, and
// panic recovery around message handlers.
package transport
