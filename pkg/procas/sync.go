package procas

import "context"

const syncPageSize = 500

// Pull reads every change after the given sequence, calling fn in order, and
// returns the last sequence seen. Callers persist it and pass it back on the
// next call to poll incrementally.
func (c *Client) Pull(ctx context.Context, after int64, fn func(Change) error) (int64, error) {
	for {
		page, err := c.Changes(ctx, after, syncPageSize)
		if err != nil {
			return after, err
		}
		for _, ch := range page.Changes {
			if err := fn(ch); err != nil {
				return after, err
			}
			after = ch.Sequence
		}
		if !page.HasMore || len(page.Changes) == 0 {
			return after, nil
		}
	}
}
