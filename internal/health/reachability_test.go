package health

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	assert.True(t, Reachable(addr, time.Second))

	ln.Close()
	assert.False(t, Reachable(addr, 200*time.Millisecond))
}

func TestWaitReachableImmediate(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ok := WaitReachable(context.Background(), ln.Addr().String(), 5*time.Second, slog.Default())
	assert.True(t, ok)
}

func TestWaitReachableTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	start := time.Now()
	ok := WaitReachable(context.Background(), addr, time.Second, slog.Default())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestWaitReachableHonorsContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	ok := WaitReachable(ctx, addr, 0, slog.Default())
	assert.False(t, ok)
}
