package services

import (
	"context"
	"errors"
	"sync"

	"github.com/flashbots/quorumcompute/protocol"
)

// SignedMail is a mail payload signed by the enclave key.
type SignedMail = protocol.Signed[protocol.Mail]

// ErrEmptyRoute is returned when mail is posted without a route.
var ErrEmptyRoute = errors.New("mail has no route")

// Inbox stores signed mail by route until it is collected.
// Collect drains the route: every mail is returned exactly once.
type Inbox interface {
	Post(ctx context.Context, mail *SignedMail) error
	Collect(ctx context.Context, route string) ([]*SignedMail, error)
}

func mailRoute(mail *SignedMail) (string, error) {
	if mail == nil || mail.Object == nil || mail.Object.Route == "" {
		return "", ErrEmptyRoute
	}
	return mail.Object.Route, nil
}

// InMemoryInbox implements Inbox without persistence.
type InMemoryInbox struct {
	mu     sync.Mutex
	routes map[string][]*SignedMail
}

// NewInMemoryInbox creates an empty in-memory inbox.
func NewInMemoryInbox() *InMemoryInbox {
	return &InMemoryInbox{
		routes: make(map[string][]*SignedMail),
	}
}

// Post appends mail to its route.
func (i *InMemoryInbox) Post(_ context.Context, mail *SignedMail) error {
	route, err := mailRoute(mail)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.routes[route] = append(i.routes[route], mail)
	return nil
}

// Collect removes and returns the mail posted to route in posting order.
func (i *InMemoryInbox) Collect(_ context.Context, route string) ([]*SignedMail, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	mail := i.routes[route]
	delete(i.routes, route)
	return mail, nil
}

// Pending returns the number of uncollected mails for route.
func (i *InMemoryInbox) Pending(route string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.routes[route])
}
