package link

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestClientReceivesAndReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := NewClient(ln.Addr().String(), quiet())
	c.RetryDelay = 10 * time.Millisecond
	c.ReconnectDelay = 10 * time.Millisecond

	got := make(chan string, 8)
	c.Subscribe("vehicle_update", func(d []byte) { got <- string(d) })
	var connects atomic.Int32
	c.OnConnect = func(context.Context) { connects.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// primera conexión: hello, luego dos líneas (una inválida)
	conn, err := ln.Accept()
	require.NoError(t, err)
	hello, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(hello, &env))
	assert.Equal(t, "subscribe", env.Event)
	assert.JSONEq(t, `["vehicle_update"]`, string(env.Data))

	_, err = conn.Write([]byte("garbage\n{\"event\":\"vehicle_update\",\"data\":{\"id\":1}}\n"))
	require.NoError(t, err)
	select {
	case d := <-got:
		assert.JSONEq(t, `{"id":1}`, d)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	assert.Equal(t, "connected", c.Status().State)
	conn.Close()

	conn, err = ln.Accept()
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return connects.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, "disconnected", c.Status().State)
}

func TestClientStopsWhileDialing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(addr, quiet())
	c.RetryDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestBadEnvelopeLogIsClipped(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient("127.0.0.1:0", slog.New(slog.NewTextHandler(&buf, nil)))
	got := 0
	c.Subscribe("vehicle_update", func([]byte) { got++ })

	line := []byte(strings.Repeat("x", 64*1024))
	c.handleIncomingLine(line)

	out := buf.String()
	assert.Contains(t, out, "bad envelope")
	assert.Contains(t, out, strings.Repeat("x", maxLoggedLine)+"...")
	assert.NotContains(t, out, strings.Repeat("x", maxLoggedLine+1))
	assert.Contains(t, out, "len=65536")
	assert.Zero(t, got)
}
