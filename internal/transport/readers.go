package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openfab-labs/acs-core/internal/reader"
)

// commandQoS is the QoS for reader commands. At-least-once so a briefly
// offline reader still receives a queued command on reconnect; firmware
// treats duplicate state commands as idempotent.
const commandQoS = 1

// StateCommand is the payload published to acs/command/<serial>.
type StateCommand struct {
	State     string `json:"state"`
	Timestamp string `json:"timestamp"`
}

// IdentifyRequest is the payload published to acs/identify/<serial>.
type IdentifyRequest struct {
	On        bool   `json:"on"`
	Timestamp string `json:"timestamp"`
}

// SendStateCommand publishes a state command to the reader.
//
// Delivery to the broker is confirmed; delivery to the device is not. The
// device confirms by reporting the new state, which is why callers track
// commanded and reported state separately.
func (c *Client) SendStateCommand(ctx context.Context, serial string, state reader.State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sending state command: %w", err)
	}

	payload, err := json.Marshal(StateCommand{
		State:     string(state),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding state command: %w", err)
	}

	return c.Publish(Topics{}.ReaderCommand(serial), payload, commandQoS, false)
}

// SendIdentify publishes an identify request to the reader, asking it to
// start or stop flashing its locator indicator.
func (c *Client) SendIdentify(ctx context.Context, serial string, on bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sending identify: %w", err)
	}

	payload, err := json.Marshal(IdentifyRequest{
		On:        on,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding identify request: %w", err)
	}

	return c.Publish(Topics{}.ReaderIdentify(serial), payload, commandQoS, false)
}

// AccessDecision is the payload published to acs/grant/<serial> after a
// card swipe has been checked against the rules engine.
type AccessDecision struct {
	CardID    string `json:"card_id"`
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SendAccessDecision publishes the verdict for a card swipe back to the
// reader that reported it. The reader holds the door or spindle locked
// until a decision arrives; a lost message reads as a denial.
func (c *Client) SendAccessDecision(ctx context.Context, serial, cardID string, allowed bool, reason string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sending access decision: %w", err)
	}

	payload, err := json.Marshal(AccessDecision{
		CardID:    cardID,
		Allowed:   allowed,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding access decision: %w", err)
	}

	return c.Publish(Topics{}.ReaderGrant(serial), payload, commandQoS, false)
}

// ReportHandler receives raw status reports keyed by the publishing
// reader's serial.
type ReportHandler func(serial string, payload []byte) error

// SubscribeReports subscribes to status reports from the whole fleet and
// routes each message to the handler with its serial extracted.
func (c *Client) SubscribeReports(handler ReportHandler) error {
	return c.Subscribe(Topics{}.AllReaderReports(), commandQoS, func(topic string, payload []byte) error {
		serial := ReportSerial(topic)
		if serial == "" {
			return fmt.Errorf("unexpected report topic %q", topic)
		}
		return handler(serial, payload)
	})
}
