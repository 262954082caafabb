package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// writePoint queues one point on the batching API, dropping it when the
// client is disconnected. Telemetry recording never blocks ingest.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// readerTags is the tag set shared by all per-reader measurements.
func readerTags(readerID, serial string) map[string]string {
	return map[string]string{
		"reader_id": readerID,
		"serial":    serial,
	}
}

// WriteReaderTemperature records a reader's board temperature.
func (c *Client) WriteReaderTemperature(readerID, serial string, celsius float64) {
	c.writePoint("reader_temperature",
		readerTags(readerID, serial),
		map[string]any{"celsius": celsius},
		time.Now())
}

// WriteReaderState records a reader's reported state transition.
//
// State is stored as a field, not a tag, to keep series cardinality bound
// to the fleet size rather than fleet size times state count.
func (c *Client) WriteReaderState(readerID, serial, state string) {
	c.writePoint("reader_state",
		readerTags(readerID, serial),
		map[string]any{"state": state},
		time.Now())
}

// WritePoint records a custom measurement. Tags index the point and must
// stay low-cardinality; fields carry the data.
//
//	client.WritePoint("fleet_stats",
//	    map[string]string{"site": "workshop-a"},
//	    map[string]any{"online": 12, "total": 14})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.writePoint(measurement, tags, fields, time.Now())
}
