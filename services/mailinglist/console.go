package mailinglist

import (
	"context"
	"log"
	"sync"

	"github.com/humanistchoir/members/core"
)

// Console logs subscriptions and keeps them in memory.
type Console struct {
	logger *log.Logger

	mu          sync.Mutex
	Subscribers []core.Subscriber
}

var _ core.MailingList = (*Console)(nil)

func NewConsole(logger *log.Logger) *Console {
	return &Console{logger: logger}
}

func (c *Console) Subscribe(_ context.Context, sub core.Subscriber) error {
	c.mu.Lock()
	c.Subscribers = append(c.Subscribers, sub)
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Printf("subscribed %s %s <%s> to mailing list", sub.FirstName, sub.LastName, sub.Email)
	}
	return nil
}
