package mailer

import "github.com/sirupsen/logrus"

// AsyncDispatcher sends each email on its own goroutine. Callers never wait
// for delivery and never see delivery errors; failures are only logged.
type AsyncDispatcher struct {
	sender Sender
}

func NewAsyncDispatcher(sender Sender) *AsyncDispatcher {
	return &AsyncDispatcher{sender: sender}
}

func (d *AsyncDispatcher) Dispatch(kind Kind, email, token string) {
	go func() {
		if err := d.sender.Send(kind, email, token); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"kind":  kind,
				"email": email,
			}).Error("email delivery failed")
		}
	}()
}
