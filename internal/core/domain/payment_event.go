package domain

// PaymentEventType tags notification events.
type PaymentEventType string

// PaymentReceived is emitted when a payment slot is newly observed on a record.
const PaymentReceived PaymentEventType = "payment_received"

// PaymentEvent is handed to the notification publisher after a committed write.
type PaymentEvent struct {
	Type        PaymentEventType `json:"type"`
	RecordID    string           `json:"recordId"`
	ClientName  string           `json:"clientName"`
	Slot        int              `json:"slot"`
	Amount      string           `json:"amount"`
	PaymentDate string           `json:"paymentDate"`
	Link        string           `json:"link"`
	DetectedAt  string           `json:"detectedAt"`
}
