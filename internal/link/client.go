package link

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"fleet-view/internal/observability"
)

// Envelope es cada línea NDJSON del canal.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is a reconnecting NDJSON-over-TCP telemetry channel.
type Client struct {
	*Hub

	addr   string
	logger *slog.Logger
	state  stateBox

	// OnConnect corre tras cada conexión, antes de leer eventos.
	OnConnect func(ctx context.Context)

	RetryDelay     time.Duration
	ReconnectDelay time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewClient(addr string, lg *slog.Logger) *Client {
	return &Client{
		Hub:            NewHub(),
		addr:           addr,
		logger:         lg.With("component", "link", "channel", "tcp"),
		RetryDelay:     5 * time.Second,
		ReconnectDelay: 2 * time.Second,
	}
}

func (c *Client) Status() Status { return c.state.status("tcp") }

// -------------------------------------------------------------------
//                        LOOP DE CONEXIÓN
// -------------------------------------------------------------------

// Run dials and reads until ctx is cancelled, reconnecting on failure.
func (c *Client) Run(ctx context.Context) error {
	var d net.Dialer
	for {
		c.state.set(StateConnecting, "")
		conn, err := d.DialContext(ctx, "tcp", c.addr)
		if err != nil {
			if ctx.Err() != nil {
				c.state.set(StateDisconnected, "")
				return nil
			}
			c.logger.Error("link: dial failed", "addr", c.addr, "err", err)
			if !sleep(ctx, c.RetryDelay) {
				c.state.set(StateDisconnected, "")
				return nil
			}
			continue
		}

		c.setConn(conn)
		c.state.set(StateConnected, conn.RemoteAddr().String())
		observability.ChannelConnects.WithLabelValues("tcp").Inc()
		c.logger.Info("link: connected", "remote", conn.RemoteAddr().String())

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		if err := c.hello(); err != nil {
			c.logger.Warn("link: hello failed", "err", err)
		}
		if c.OnConnect != nil {
			c.OnConnect(ctx)
		}

		// leer en este hilo hasta que se caiga
		c.readLoop(conn)
		stop()

		c.clearConn(conn)
		c.state.set(StateDisconnected, "")
		observability.ChannelDisconnects.WithLabelValues("tcp").Inc()
		if ctx.Err() != nil {
			c.logger.Info("link: closed")
			return nil
		}
		c.logger.Warn("link: connection closed, reconnecting...")
		if !sleep(ctx, c.ReconnectDelay) {
			return nil
		}
	}
}

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

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *Client) clearConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) getConn() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// -------------------------------------------------------------------
//                           LECTURA
// -------------------------------------------------------------------

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewScanner(conn)
	r.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for r.Scan() {
		c.handleIncomingLine(r.Bytes())
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("link: read error", "err", err)
	}
}

func (c *Client) handleIncomingLine(line []byte) {
	if len(line) == 0 {
		return
	}
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil || env.Event == "" {
		c.logger.Warn("link: bad envelope", "line", clip(line), "len", len(line))
		observability.TelemetryEvents.WithLabelValues("malformed").Inc()
		return
	}
	if !c.Dispatch(env.Event, env.Data) {
		c.logger.Debug("link: no subscribers", "event", env.Event)
	}
}

// maxLoggedLine acota lo que se copia al log de una línea inválida.
const maxLoggedLine = 256

func clip(line []byte) string {
	if len(line) <= maxLoggedLine {
		return string(line)
	}
	return string(line[:maxLoggedLine]) + "..."
}

// -------------------------------------------------------------------
//                          ENVÍO NDJSON
// -------------------------------------------------------------------

func (c *Client) sendNDJSON(v any) error {
	conn := c.getConn()
	if conn == nil {
		return fmt.Errorf("link: not connected")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = conn.Write(append(b, '\n'))
	return err
}

// hello anuncia al proxy qué eventos queremos recibir.
func (c *Client) hello() error {
	data, err := json.Marshal(c.Events())
	if err != nil {
		return err
	}
	return c.sendNDJSON(Envelope{Event: "subscribe", Data: data})
}
