package domain

import (
	"encoding/json"
	"time"
)

const EventInvoiceCreated = "invoice.created"

type OutboxEvent struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type InvoiceCreatedEvent struct {
	EventID       string      `json:"event_id"`
	Type          string      `json:"type"`
	InvoiceID     int64       `json:"invoice_id"`
	InvoiceNumber string      `json:"invoice_number"`
	GrandTotal    string      `json:"grand_total"`
	Lines         []EventLine `json:"lines"`
	CreatedAt     time.Time   `json:"created_at"`
}

type EventLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
