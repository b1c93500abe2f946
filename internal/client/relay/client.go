package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/cryptox"
	"github.com/dmitrijs2005/dropbox/internal/timex"
)

const (
	DefaultSender      = "client"
	DefaultContentType = "application/json"
)

// Client exchanges encrypted messages over one channel.
type Client struct {
	t   *transport
	key []byte
}

// NewClient returns a mailbox client for ch.
func NewClient(baseURL string, ch *Channel, opts ...Option) *Client {
	return &Client{t: newTransport(baseURL, ch.APIKey, opts), key: ch.ChannelKey}
}

// SendOptions override the defaults of Send.
type SendOptions struct {
	Sender      string
	ContentType string
}

// Sent is the relay's acknowledgement of a posted message.
type Sent struct {
	ID        string
	CreatedAt time.Time
}

// Message is a decrypted mailbox entry. Data holds the JSON the sender passed
// to Send.
type Message struct {
	ID          string
	Sender      string
	ContentType *string
	Data        json.RawMessage
	CreatedAt   time.Time
}

type wireMessage struct {
	ID          string  `json:"id"`
	Sender      string  `json:"sender"`
	ContentType *string `json:"contentType"`
	Body        string  `json:"body"`
	Nonce       string  `json:"nonce"`
	CreatedAt   string  `json:"createdAt"`
}

type postMessage struct {
	Sender      string  `json:"sender"`
	ContentType *string `json:"contentType"`
	Body        string  `json:"body"`
	Nonce       string  `json:"nonce"`
}

type posted struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
}

// Send encodes data as JSON, seals it with the channel key and posts it.
func (c *Client) Send(ctx context.Context, data any, o SendOptions) (*Sent, error) {
	if o.Sender == "" {
		o.Sender = DefaultSender
	}
	if o.ContentType == "" {
		o.ContentType = DefaultContentType
	}

	ct, nonce, err := cryptox.EncryptEntry(data, c.key)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	var out posted
	err = c.t.doJSON(ctx, http.MethodPost, "/messages", postMessage{
		Sender:      o.Sender,
		ContentType: &o.ContentType,
		Body:        base64.StdEncoding.EncodeToString(ct),
		Nonce:       base64.StdEncoding.EncodeToString(nonce),
	}, &out)
	if err != nil {
		return nil, err
	}

	created, err := timex.ParseWire(out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &Sent{ID: out.ID, CreatedAt: created}, nil
}

// Poll fetches and decrypts pending messages, oldest first. A nil since
// returns the whole mailbox. Any message that fails to decrypt fails the
// whole poll.
func (c *Client) Poll(ctx context.Context, since *time.Time) ([]Message, error) {
	path := "/messages"
	if since != nil {
		path += "?since=" + url.QueryEscape(timex.FormatWire(*since))
	}

	var out struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := c.t.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		dm, err := c.open(m)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", m.ID, err)
		}
		msgs = append(msgs, dm)
	}
	return msgs, nil
}

func (c *Client) open(m wireMessage) (Message, error) {
	body, err := base64.StdEncoding.DecodeString(m.Body)
	if err != nil {
		return Message{}, err
	}
	nonce, err := base64.StdEncoding.DecodeString(m.Nonce)
	if err != nil {
		return Message{}, err
	}

	var data json.RawMessage
	if err := cryptox.DecryptEntry(body, nonce, c.key, &data); err != nil {
		return Message{}, err
	}

	created, err := timex.ParseWire(m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:          m.ID,
		Sender:      m.Sender,
		ContentType: m.ContentType,
		Data:        data,
		CreatedAt:   created,
	}, nil
}

// DeleteMessage acknowledges a message so it is not delivered again.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.t.doJSON(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil)
}
