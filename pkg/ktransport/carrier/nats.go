package carrier

import (
	"context"
	"fmt"

	"github.com/madara-go/karl/internal/krlog"
	"github.com/madara-go/karl/pkg/ktransport"
	"github.com/nats-io/nats.go"
)

// Nats publishes and subscribes wire messages on a subject derived
// from the transport domain, grounded directly on the teacher's
// pkg/nats Client: the same reconnect/disconnect/error handler wiring
// and connection-management shape, adapted here to speak the fixed
// (domain → subject) mapping a Carrier needs instead of the teacher's
// arbitrary caller-chosen subjects, and logging through krlog instead
// of the teacher's cc-lib logger (which this module does not and
// should not depend on).
type Nats struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewNats connects to address; Receive subscribes to the domain's
// subject ("karl." + domain). username/password and credsFile are optional,
// mirroring the teacher's NatsConfig fields.
func NewNats(address, domain, username, password, credsFile string) (*Nats, error) {
	if address == "" {
		return nil, fmt.Errorf("carrier: nats address is required")
	}

	var opts []nats.Option
	if username != "" && password != "" {
		opts = append(opts, nats.UserInfo(username, password))
	}
	if credsFile != "" {
		opts = append(opts, nats.UserCredentials(credsFile))
	}
	opts = append(opts,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				krlog.Warnf("carrier: nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			krlog.Infof("carrier: nats reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			krlog.Errorf("carrier: nats error: %v", err)
		}),
	)

	nc, err := nats.Connect(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("carrier: nats connect: %w", err)
	}
	krlog.Infof("carrier: nats connected to %s", address)

	return &Nats{conn: nc, subject: "karl." + domain}, nil
}

func (n *Nats) Send(ctx context.Context, buf []byte) (int, error) {
	if err := n.conn.Publish(n.subject, buf); err != nil {
		return -1, fmt.Errorf("carrier: nats publish to %s: %w", n.subject, err)
	}
	return len(buf), nil
}

func (n *Nats) Receive(ctx context.Context) (<-chan ktransport.Datagram, error) {
	out := make(chan ktransport.Datagram, 64)
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)
		select {
		case out <- ktransport.Datagram{Data: data, Endpoint: n.subject}:
		case <-ctx.Done():
		}
	})
	if err != nil {
		close(out)
		return nil, fmt.Errorf("carrier: nats subscribe to %s: %w", n.subject, err)
	}
	n.sub = sub

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
		close(out)
	}()
	return out, nil
}

func (n *Nats) LocalID() string { return n.conn.ConnectedAddr() }

func (n *Nats) Close() error {
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	n.conn.Close()
	return nil
}
