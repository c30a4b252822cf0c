package redline

import "context"

// SendFunc is the function signature that Wrap guards.
type SendFunc func(ctx context.Context, msg Message) error

// Wrap returns a SendFunc that rewrites each message before calling fn.
// fn receives the rewritten text. With BlockAtOrAbove, messages at or above
// the level return a *BlockedError without calling fn.
func (c *Client) Wrap(fn SendFunc, opts ...WrapOption) SendFunc {
	wcfg := wrapConfig{audience: "client"}
	for _, o := range opts {
		o(&wcfg)
	}

	return func(ctx context.Context, msg Message) error {
		if msg.Audience == "" {
			msg.Audience = wcfg.audience
		}
		res, err := c.Rewrite(ctx, msg)
		if err != nil {
			return err
		}

		if wcfg.block != "" && res.Risk.rank() >= wcfg.block.rank() {
			return &BlockedError{TraceID: res.TraceID, Risk: res.Risk, Flagged: res.Flagged}
		}

		msg.Body = res.Text
		return fn(ctx, msg)
	}
}
