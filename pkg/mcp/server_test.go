package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/ipogen/pkg/cli"
)

func TestNewServerFactory(t *testing.T) {
	f := NewServerFactory("ipogen", "1.2.3", nil)
	require.NotNil(t, f.Logger)
	assert.Equal(t, "ipogen", f.Impl.Name)
	assert.Equal(t, "1.2.3", f.Impl.Version)

	assert.NotNil(t, f.CreateServer(NewHandler(cli.NewHandler(nil))))
	assert.NotNil(t, f.CreateServer(nil))
}

func TestRunServerUnsupportedTransport(t *testing.T) {
	f := NewServerFactory("ipogen", "dev", nil)
	err := f.RunServer(context.Background(), f.CreateServer(nil), "websocket", "8080")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported transport")
}
