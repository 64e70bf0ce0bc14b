// Package server fans render commands out to connected map widgets.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const clientQueue = 256

// Broadcaster implements render.Sink over TCP: every published NDJSON line
// is written to every connected widget. A widget that cannot keep up is
// disconnected rather than allowed to stall the map loop.
type Broadcaster struct {
	logger *slog.Logger

	mu                sync.Mutex
	listener          net.Listener
	activeConnections map[string]*client
}

type client struct {
	conn net.Conn
	out  chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.out)
		_ = c.conn.Close()
	})
}

func NewBroadcaster(lg *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:            lg.With("component", "broadcast"),
		activeConnections: make(map[string]*client),
	}
}

// Listen binds addr; Serve must follow.
func (b *Broadcaster) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error starting TCP server: %w", err)
	}
	b.mu.Lock()
	b.listener = ln
	b.mu.Unlock()
	b.logger.Info("render stream listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

// Serve accepts widgets until ctx is cancelled.
func (b *Broadcaster) Serve(ctx context.Context) error {
	b.mu.Lock()
	ln := b.listener
	b.mu.Unlock()
	if ln == nil {
		return errors.New("broadcast: Listen not called")
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				b.closeAll()
				return nil
			}
			b.logger.Error("accept error", "err", err)
			continue
		}
		b.handleConnection(conn)
	}
}

func (b *Broadcaster) handleConnection(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetKeepAlive(true)
		_ = tcpConn.SetKeepAlivePeriod(60 * time.Second)
	}

	key := conn.RemoteAddr().String()
	c := &client{conn: conn, out: make(chan []byte, clientQueue)}
	b.mu.Lock()
	b.activeConnections[key] = c
	b.mu.Unlock()
	b.logger.Info("widget connected", "remote", key)

	go b.writeLoop(key, c)
	go b.readLoop(key, c)
}

func (b *Broadcaster) writeLoop(key string, c *client) {
	for line := range c.out {
		if _, err := c.conn.Write(line); err != nil {
			b.logger.Warn("write error", "remote", key, "err", err)
			b.drop(key, c)
			return
		}
	}
}

// readLoop sólo detecta el cierre; el widget no envía comandos.
func (b *Broadcaster) readLoop(key string, c *client) {
	_, err := io.Copy(io.Discard, c.conn)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		b.logger.Warn("read error", "remote", key, "err", err)
	}
	b.drop(key, c)
}

func (b *Broadcaster) drop(key string, c *client) {
	b.mu.Lock()
	if b.activeConnections[key] == c {
		delete(b.activeConnections, key)
		b.logger.Info("widget disconnected", "remote", key)
	}
	b.mu.Unlock()
	c.close()
}

// Publish never blocks.
func (b *Broadcaster) Publish(line []byte) {
	msg := make([]byte, len(line)+1)
	copy(msg, line)
	msg[len(line)] = '\n'

	b.mu.Lock()
	defer b.mu.Unlock()
	for key, c := range b.activeConnections {
		select {
		case c.out <- msg:
		default:
			b.logger.Warn("widget too slow, disconnecting", "remote", key)
			delete(b.activeConnections, key)
			c.close()
		}
	}
}

func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.activeConnections)
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, c := range b.activeConnections {
		delete(b.activeConnections, key)
		c.close()
	}
}
