package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"receipts/internal/core"
	"receipts/internal/services"
)

// RoutingKeyIngested is the routing key of receipt-ingested events.
const RoutingKeyIngested = "receipt.ingested"

// ReceiptIngestedMessage is published after a receipt has been stored.
// Consumers fetch the full document from the store by ID when they need it.
type ReceiptIngestedMessage struct {
	services.IngestedEvent
	Timestamp time.Time `json:"timestamp"`
}

func NewReceiptIngestedMessage(ev services.IngestedEvent) *ReceiptIngestedMessage {
	return &ReceiptIngestedMessage{
		IngestedEvent: ev,
		Timestamp:     time.Now(),
	}
}

func (m *ReceiptIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReceiptIngestedMessageFromJSON(data []byte) (*ReceiptIngestedMessage, error) {
	var msg ReceiptIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeReceipt parses a queued receipt. The body is the same JSON object the
// HTTP ingestion endpoint accepts.
func DecodeReceipt(data []byte) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("decode receipt: body is not a JSON object")
	}
	return rec, nil
}
