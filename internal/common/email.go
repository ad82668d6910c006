package common

// EmailSender delivers a rendered HTML message to a single recipient.
// The notify package renders Arabic templates before calling Send.
type EmailSender interface {
	Send(to, subject, html string) error
}

// InMemoryEmail collects sent messages in an outbox for tests to inspect.
type InMemoryEmail struct {
	Outbox []Email
}

// Email is one message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Send appends the message to the outbox.
func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender discards everything. Used when NOTIFY_EMAIL_ENABLED is off.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }
