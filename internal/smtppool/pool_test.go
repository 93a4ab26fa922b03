package smtppool_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devyanshu/mailcheck/internal/smtppool"
)

func TestPool_ReusesReleasedConnection(t *testing.T) {
	dialCount := 0
	p := smtppool.New(smtppool.Config{
		MaxPerHost: 2,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			dialCount++
			client, server := net.Pipe()
			go func() { _ = server.Close() }()
			return client, nil
		},
	})

	conn1, reused1, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, reused1)
	p.Release("mx.example.com", "25", conn1)

	assert.Equal(t, 1, p.IdleCount("mx.example.com"))

	conn2, reused2, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.True(t, reused2)
	assert.Same(t, conn1, conn2)
	assert.Equal(t, 1, dialCount)
}

func TestPool_EvictsStaleIdleConnections(t *testing.T) {
	p := smtppool.New(smtppool.Config{
		MaxPerHost:  2,
		IdleTimeout: 10 * time.Millisecond,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			client, server := net.Pipe()
			go func() { _ = server.Close() }()
			return client, nil
		},
	})

	conn1, _, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	p.Release("mx.example.com", "25", conn1)

	time.Sleep(30 * time.Millisecond)

	conn2, reused, err := p.Acquire("mx.example.com", "25")
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotSame(t, conn1, conn2)
}

func TestPool_DiscardsBeyondMaxPerHost(t *testing.T) {
	p := smtppool.New(smtppool.Config{
		MaxPerHost: 1,
		Dial: func(network, address string, timeout time.Duration) (net.Conn, error) {
			client, server := net.Pipe()
			go func() { _ = server.Close() }()
			return client, nil
		},
	})

	a, _, _ := p.Acquire("mx.example.com", "25")
	b, _, _ := p.Acquire("mx.example.com", "25")

	p.Release("mx.example.com", "25", a)
	p.Release("mx.example.com", "25", b)

	assert.Equal(t, 1, p.IdleCount("mx.example.com"))
}
