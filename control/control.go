// Package control carries operator commands from the API to the scheduler
// over a list in the shared store. Commands are consumed oldest first.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matchqueue/model"
	"matchqueue/store"
)

const DefaultKey = "queue:commands"

var ErrMalformedCommand = errors.New("malformed command")

type Channel struct {
	store store.Store
	key   string
	now   func() time.Time
}

func New(st store.Store, key string) *Channel {
	if key == "" {
		key = DefaultKey
	}
	return &Channel{store: st, key: key, now: time.Now}
}

func (c *Channel) Key() string { return c.key }

// Send pushes a named command stamped with the current time.
func (c *Channel) Send(ctx context.Context, name string) (model.Command, error) {
	cmd := model.NewCommand(name, c.now())
	data, err := json.Marshal(cmd)
	if err != nil {
		return cmd, err
	}
	if err := c.store.LPush(ctx, c.key, string(data)); err != nil {
		return cmd, fmt.Errorf("sending %s command: %w", name, err)
	}
	return cmd, nil
}

// Receive waits up to timeout for the oldest pending command. It returns
// nil, nil when none arrived.
func (c *Channel) Receive(ctx context.Context, timeout time.Duration) (*model.Command, error) {
	raw, err := c.store.BRPop(ctx, timeout, c.key)
	if err != nil {
		if errors.Is(err, store.ErrNil) {
			return nil, nil
		}
		return nil, err
	}
	var cmd model.Command
	if err := json.Unmarshal([]byte(raw), &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if cmd.Command == "" {
		return nil, fmt.Errorf("%w: missing command name", ErrMalformedCommand)
	}
	return &cmd, nil
}
