package events

// Topic constants for domain events emitted by the platform.
const (
	TopicBookingCreated       = "booking.created"
	TopicBookingConfirmed     = "booking.confirmed"
	TopicBookingCancelled     = "booking.cancelled"
	TopicPaymentPaid          = "payment.paid"
	TopicPaymentFailed        = "payment.failed"
	TopicPrescriptionReceived = "prescription.received"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicBookingCreated,
		TopicBookingConfirmed,
		TopicBookingCancelled,
		TopicPaymentPaid,
		TopicPaymentFailed,
		TopicPrescriptionReceived,
	}
}
