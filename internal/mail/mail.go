// Package mail delivers transactional security mails. Delivery is
// fire-and-forget from the caller's perspective: a failed send is logged and
// never fails the surrounding operation.
package mail

import "context"

type Mail struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

func New(to, subject, body string) Mail {
	return Mail{To: to, Subject: subject, Body: body}
}
