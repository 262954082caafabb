package transport

import "fmt"

// Topic prefixes for reader fleet messaging.
//
// Per-device topics carry the hardware serial as the last segment:
// acs/{category}/{serial}. Serials are validated at pairing time, so they
// never contain MQTT separator or wildcard characters.
const (
	// TopicPrefix is the base for all fleet topics.
	TopicPrefix = "acs"

	// TopicPrefixService is the base for service-level topics.
	TopicPrefixService = "acs/service"
)

// Topics provides builders for fleet MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := transport.Topics{}
//	cmdTopic := topics.ReaderCommand("SN-00427")
//	// Returns: "acs/command/SN-00427"
type Topics struct{}

// ReaderReport returns the topic a reader publishes its status reports to.
//
// Example: acs/report/SN-00427
func (Topics) ReaderReport(serial string) string {
	return fmt.Sprintf("%s/report/%s", TopicPrefix, serial)
}

// ReaderCommand returns the topic for state commands to a reader.
//
// Example: acs/command/SN-00427
func (Topics) ReaderCommand(serial string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, serial)
}

// ReaderIdentify returns the topic for identify requests to a reader.
//
// Example: acs/identify/SN-00427
func (Topics) ReaderIdentify(serial string) string {
	return fmt.Sprintf("%s/identify/%s", TopicPrefix, serial)
}

// ReaderGrant returns the topic for access decisions sent back to a
// reader after a card swipe.
//
// Example: acs/grant/SN-00427
func (Topics) ReaderGrant(serial string) string {
	return fmt.Sprintf("%s/grant/%s", TopicPrefix, serial)
}

// ServiceStatus returns the service status topic. The client's Last Will
// and Testament publishes here so the fleet can detect a crashed service.
//
// Example: acs/service/status
func (Topics) ServiceStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixService)
}

// AllReaderReports returns a pattern matching reports from every reader.
//
// Pattern: acs/report/+
func (Topics) AllReaderReports() string {
	return fmt.Sprintf("%s/report/+", TopicPrefix)
}

// ReportSerial extracts the serial from a report topic. Returns an empty
// string if the topic is not a report topic.
func ReportSerial(topic string) string {
	prefix := TopicPrefix + "/report/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	return topic[len(prefix):]
}
