// Package messaging is the single outbound message gateway. Delivery is
// best-effort: send failures are logged by implementations and reported as a
// boolean, never as an error that could block business logic.
package messaging

import "context"

// Sender delivers one message to a phone-number-like address.
type Sender interface {
	// Send returns true when the message was accepted for delivery.
	Send(ctx context.Context, to, body string) bool
}

// SendWithLink appends a prominent link to the body before sending.
func SendWithLink(ctx context.Context, s Sender, to, body, link string) bool {
	return s.Send(ctx, to, body+"\n\n🔗 "+link)
}
