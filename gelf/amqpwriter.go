package gelf

import (
	"context"
	"os"
	"path"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPWriter publishes GELF JSON payloads to an AMQP 0.9.1 exchange,
// for Graylog setups that ingest from a message queue instead of a
// socket.  The connection is opened lazily on the first write and
// dropped on any publish failure, so the next write reconnects
// transparently.
type AMQPWriter struct {
	hostname string
	Facility string

	url        string
	exchange   string
	routingKey string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPWriter returns a writer publishing to the given exchange
// with the given routing key.  url is an amqp:// URL including any
// credentials and vhost.  The exchange must already exist.
func NewAMQPWriter(url, exchange, routingKey string) (*AMQPWriter, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	return &AMQPWriter{
		hostname:   hostname,
		Facility:   path.Base(os.Args[0]),
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// channel returns an open channel, dialing if necessary.  Callers
// must hold w.mu.
func (w *AMQPWriter) channel() (*amqp.Channel, error) {
	if w.ch != nil && !w.ch.IsClosed() {
		return w.ch, nil
	}
	w.drop()

	conn, err := amqp.Dial(w.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	// the exchange is expected to exist already; fail loudly if not
	if err := ch.ExchangeDeclarePassive(w.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	w.conn = conn
	w.ch = ch
	return ch, nil
}

// drop discards the current connection so the next write redials.
// Callers must hold w.mu.
func (w *AMQPWriter) drop() {
	if w.ch != nil {
		w.ch.Close()
		w.ch = nil
	}
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

func (w *AMQPWriter) WriteMessage(m *Message) error {
	buf := newBuffer()
	defer bufPool.Put(buf)
	messageBytes, err := m.toBytes(buf)
	if err != nil {
		return err
	}
	return w.WriteRaw(messageBytes)
}

// WriteRaw publishes an already-serialized GELF JSON payload.
func (w *AMQPWriter) WriteRaw(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch, err := w.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(context.Background(), w.exchange, w.routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        append([]byte(nil), p...),
	})
	if err != nil {
		// assume the connection went away; redial on the next write
		w.drop()
		return err
	}
	return nil
}

func (w *AMQPWriter) Write(p []byte) (n int, err error) {
	file, line := getCallerIgnoringLogMulti(1)

	m := constructMessage(p, w.hostname, w.Facility, file, line)

	if err = w.WriteMessage(m); err != nil {
		return 0, err
	}

	return len(p), nil
}

func (w *AMQPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drop()
	return nil
}
