package payments

// Gateway webhook event types the reconciler reacts to. Anything else is
// acknowledged and dropped.
const (
	EventPaymentSucceeded         = "payment.succeeded"
	EventPaymentCanceled          = "payment.canceled"
	EventPaymentWaitingForCapture = "payment.waiting_for_capture"
	EventRefundSucceeded          = "refund.succeeded"
)

// NotificationAmount mirrors the gateway's decimal-string money shape.
type NotificationAmount struct {
	Value    string `json:"value" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
}

// NotificationObject is the payment or refund snapshot inside a notification.
type NotificationObject struct {
	ID       string             `json:"id" validate:"required"`
	Status   string             `json:"status" validate:"required"`
	Amount   NotificationAmount `json:"amount" validate:"required"`
	Metadata struct {
		OrderID string `json:"order_id" validate:"omitempty,uuid"`
	} `json:"metadata"`
}

// Notification is the gateway webhook envelope.
type Notification struct {
	Type   string             `json:"type" validate:"required,eq=notification"`
	Event  string             `json:"event" validate:"required"`
	Object NotificationObject `json:"object" validate:"required"`
}
