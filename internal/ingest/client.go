package ingest

import (
	"context"
	"fmt"
	"net"
	"sync"

	"encmirror/internal/codec"
	"encmirror/internal/event"
)

// Conn is the collaborator side of the ingest socket.
type Conn struct {
	conn     net.Conn
	writeMu  sync.Mutex
	enc      *codec.Encoder
	commands chan event.Command
	done     chan struct{}
	once     sync.Once
}

// Dial connects to the ingest socket at path.
func Dial(ctx context.Context, path string) (*Conn, error) {
	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial ingest socket: %w", err)
	}
	c := &Conn{
		conn:     raw,
		enc:      codec.NewEncoder(raw),
		commands: make(chan event.Command, 16),
		done:     make(chan struct{}),
	}
	go c.readCommands()
	return c, nil
}

// Publish sends evt to the mirror.
func (c *Conn) Publish(evt event.Event) error {
	env, err := event.Wrap(evt)
	if err != nil {
		return err
	}
	return c.send(env)
}

// PublishEnvelope sends a pre-built envelope unchanged.
func (c *Conn) PublishEnvelope(env event.Envelope) error {
	return c.send(env)
}

func (c *Conn) send(env event.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.enc.Encode(env); err != nil {
		return fmt.Errorf("publish %s: %w", env.Kind, err)
	}
	return nil
}

// Commands delivers commands forwarded by the mirror. The channel closes when
// the connection ends.
func (c *Conn) Commands() <-chan event.Command {
	return c.commands
}

// Close ends the session.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readCommands() {
	defer close(c.commands)
	dec := codec.NewDecoder(c.conn)
	for {
		var env event.Envelope
		if err := dec.Decode(&env); err != nil {
			return
		}
		cmd, err := event.UnwrapCommand(env)
		if err != nil {
			continue
		}
		select {
		case c.commands <- cmd:
		case <-c.done:
			return
		}
	}
}
