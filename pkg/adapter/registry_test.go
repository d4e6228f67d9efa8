package adapter

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	connected Config
}

func (s *stubGateway) Connect(_ context.Context, cfg Config) error {
	s.connected = cfg
	return nil
}

func (s *stubGateway) Close() error { return nil }

func (s *stubGateway) Execute(context.Context, string, string) (*Result, error) {
	return &Result{}, nil
}

func (s *stubGateway) StreamTable(context.Context, string, io.Writer, string) (int64, error) {
	return 0, nil
}

func TestUnknownGatewayError_Error(t *testing.T) {
	err := &UnknownGatewayError{
		Type:      "fake_db",
		Available: []string{"mysql", "mysql-cli"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "fake_db", "error should mention the unknown type")
	assert.Contains(t, msg, "sqlgraph.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register("test_gateway_internal", func(_ *slog.Logger) Gateway { return &stubGateway{} })

	assert.True(t, IsRegistered("test_gateway_internal"))
	assert.Contains(t, ListGateways(), "test_gateway_internal")

	factory, ok := Get("test_gateway_internal")
	assert.True(t, ok)
	assert.NotNil(t, factory)
}

func TestNewGateway(t *testing.T) {
	_, err := NewGateway(Config{}, nil)
	require.Error(t, err)
	assert.Equal(t, "gateway type not specified", err.Error())

	_, err = NewGateway(Config{Type: "nope"}, nil)
	var unknown *UnknownGatewayError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Type)
}

func TestOpen_ConnectsGateway(t *testing.T) {
	stub := &stubGateway{}
	Register("test_gateway_open", func(_ *slog.Logger) Gateway { return stub })

	cfg := Config{Type: "test_gateway_open", Host: "db.internal", Database: "analytics"}
	gw, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Same(t, stub, gw)
	assert.Equal(t, "db.internal", stub.connected.Host)
}
