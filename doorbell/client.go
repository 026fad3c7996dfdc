package doorbell

import "context"

// Client is the controller half of a Doorbell. It follows the same
// ordering contract as Server: arguments before kind, clear to acknowledge.
// Liveness is the controller's job, so callers should pass a ctx with a
// deadline.
type Client struct {
	db *Doorbell

	// Idle runs between polls.
	Idle func()
}

func NewClient(db *Doorbell) *Client {
	return &Client{db: db, Idle: defaultIdle}
}

// Call posts cmd and returns the matching response. It waits for the
// firmware to consume the command, then for a response, then clears the
// response kind so the firmware can accept the next command.
func (c *Client) Call(ctx context.Context, cmd Command) (Response, error) {
	// A previous command may still be unread.
	if err := c.waitFor(ctx, func() bool { return c.db.Cmd.Kind.Get() == uint32(CmdNone) }); err != nil {
		return Response{}, err
	}
	c.db.Cmd.Arg0.Set(cmd.Arg0)
	c.db.Cmd.Arg1.Set(cmd.Arg1)
	c.db.Cmd.Arg2.Set(cmd.Arg2)
	c.db.Cmd.Kind.Set(uint32(cmd.Kind))

	if err := c.waitFor(ctx, func() bool { return c.db.Cmd.Kind.Get() == uint32(CmdNone) }); err != nil {
		return Response{}, err
	}
	if err := c.waitFor(ctx, func() bool { return c.db.Rsp.Kind.Get() != uint32(RspNone) }); err != nil {
		return Response{}, err
	}
	r := Response{
		Kind: ResponseKind(c.db.Rsp.Kind.Get()),
		Arg0: c.db.Rsp.Arg0.Get(),
		Arg1: c.db.Rsp.Arg1.Get(),
		Arg2: c.db.Rsp.Arg2.Get(),
	}
	c.db.Rsp.Kind.Set(uint32(RspNone))
	return r, nil
}

func (c *Client) waitFor(ctx context.Context, done func() bool) error {
	for !done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Idle != nil {
			c.Idle()
		}
	}
	return nil
}
