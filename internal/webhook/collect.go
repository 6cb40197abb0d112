package webhook

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CollectReply polls until the reply is complete or MaxWait elapses. A poll
// still in flight at the deadline is abandoned and counts as a timeout.
//
// The backend may stream (stream_start, stream_chunk..., stream_end) or answer
// with a single text message, and does not say which. A stream_end always
// completes the reply; a text message completes it only when no stream_start
// was ever seen. Anything else waits for the deadline and returns the partial
// text with TimedOut set.
func (c *Client) CollectReply(ctx context.Context, conversationID string) (ReplyCollection, error) {
	deadline := time.Now().Add(c.maxWait)

	var (
		reply     ReplyCollection
		text      strings.Builder
		streaming bool
		sawText   bool
		polls     int
	)
	for {
		pollCtx, cancel := context.WithDeadline(ctx, deadline)
		msgs, err := c.PollMessages(pollCtx, conversationID)
		pollErr := pollCtx.Err()
		cancel()
		if err != nil {
			reply.Text = text.String()
			if errors.Is(pollErr, context.DeadlineExceeded) && ctx.Err() == nil {
				return c.timedOut(reply, conversationID, polls), nil
			}
			return reply, err
		}
		polls++

		ended := false
		for _, m := range msgs {
			reply.ReceivedMessages = true
			reply.RawMessages = append(reply.RawMessages, m)
			switch m.Type {
			case TypeStreamStart:
				streaming = true
			case TypeStreamChunk:
				text.WriteString(m.Content)
			case TypeText:
				sawText = true
				text.WriteString(m.Content)
			case TypeStreamEnd:
				ended = true
			default:
				c.logger.Debug("ignoring inbound message",
					zap.String("conversation_id", conversationID),
					zap.String("type", string(m.Type)))
			}
		}

		if ended || (!streaming && sawText) {
			reply.Text = text.String()
			c.logger.Debug("reply complete",
				zap.String("conversation_id", conversationID),
				zap.Int("polls", polls),
				zap.Bool("streaming", streaming))
			return reply, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || !sleep(ctx, min(c.pollInterval, remaining)) || !time.Now().Before(deadline) {
			reply.Text = text.String()
			return c.timedOut(reply, conversationID, polls), nil
		}
	}
}

func (c *Client) timedOut(reply ReplyCollection, conversationID string, polls int) ReplyCollection {
	reply.TimedOut = true
	c.logger.Warn("reply timed out",
		zap.String("conversation_id", conversationID),
		zap.Int("polls", polls),
		zap.Bool("received_messages", reply.ReceivedMessages),
		zap.Int("partial_len", len(reply.Text)))
	return reply
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
