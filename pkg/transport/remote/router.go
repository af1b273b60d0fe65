// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"time"

	"github.com/jllopis/kairos-bdi/pkg/errors"
	"github.com/jllopis/kairos-bdi/pkg/transport"
)

// Router delivers to agents registered in the local hub directly and to
// everyone else through the remote client.
type Router struct {
	hub    *transport.Hub
	remote *Client
}

// NewRouter creates a router. A nil remote makes unknown recipients an
// error, as with a bare hub.
func NewRouter(hub *transport.Hub, remote *Client) *Router {
	return &Router{hub: hub, remote: remote}
}

// Deliver implements Deliverer.
func (r *Router) Deliver(ctx context.Context, msg transport.Message) error {
	if len(msg.To) == 0 {
		return errors.New(errors.CodeInvalidInput, "message has no recipients", nil)
	}
	var local, far []string
	for _, to := range msg.To {
		if r.hub.Has(to) {
			local = append(local, to)
		} else {
			far = append(far, to)
		}
	}
	if len(local) > 0 {
		part := msg.Clone()
		part.To = local
		if err := r.hub.Deliver(ctx, part); err != nil {
			return err
		}
	}
	if len(far) == 0 {
		return nil
	}
	if r.remote == nil {
		return errors.Newf(errors.CodeNotFound, "agent %q not found", far[0]).WithContext("message_id", msg.ID)
	}
	part := msg.Clone()
	part.To = far
	return r.remote.Deliver(ctx, part)
}

// Mailbox registers name in the hub and returns its routed mailbox.
func (r *Router) Mailbox(name string) (*Mailbox, error) {
	endpoint, err := r.hub.Register(name)
	if err != nil {
		return nil, err
	}
	return &Mailbox{router: r, local: endpoint}, nil
}

// Mailbox receives from a hub inbox and sends through a Router.
type Mailbox struct {
	router *Router
	local  *transport.Endpoint
}

// Name returns the owning agent name.
func (m *Mailbox) Name() string { return m.local.Name() }

// Send implements transport.Mailbox.
func (m *Mailbox) Send(ctx context.Context, msg transport.Message) error {
	if msg.Sender == "" {
		msg.Sender = m.local.Name()
	}
	return m.router.Deliver(ctx, msg)
}

// Receive implements transport.Mailbox.
func (m *Mailbox) Receive(ctx context.Context, timeout time.Duration) (transport.Message, bool, error) {
	return m.local.Receive(ctx, timeout)
}

// Pending returns the number of queued inbound messages.
func (m *Mailbox) Pending() int { return m.local.Pending() }

var _ transport.Mailbox = (*Mailbox)(nil)
