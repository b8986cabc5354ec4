package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nhooyr.io/websocket"

	"github.com/syncspace/spacesync/internal/logger"
	"github.com/syncspace/spacesync/models"
)

const (
	defaultWriteTimeout = 30 * time.Second

	// maxMessageSize bounds one inbound frame. Blob payloads travel one
	// per did-pull message, so this caps the largest single blob.
	maxMessageSize = 16 << 20
)

// Conn is an established protocol channel to a remote sync host. Send
// satisfies the engine's Sender contract; Receive feeds the engine's
// message loop.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	logger       *logger.Logger
}

// Dial opens a websocket to the remote host. The context bounds the
// handshake only; the connection outlives it.
func Dial(ctx context.Context, url string, log *logger.Logger) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial sync host %s: %w", url, err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &Conn{
		ws:           ws,
		writeTimeout: defaultWriteTimeout,
		logger:       log,
	}, nil
}

// Send encodes and writes one protocol message.
func (c *Conn) Send(msg models.Message) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()

	c.logger.Debug().Str("kind", string(msg.Kind())).Msg("send")
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	return nil
}

// Receive blocks for the next inbound message. A normal remote close is
// reported as ErrConnClosed.
func (c *Conn) Receive(ctx context.Context) (models.Message, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, fmt.Errorf("%w: %s", ErrConnClosed, closeErr.Reason)
		}
		return nil, fmt.Errorf("read message: %w", err)
	}

	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("kind", string(msg.Kind())).Msg("recv")
	return msg, nil
}

// Close shuts the connection down gracefully.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}
