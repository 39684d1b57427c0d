package httptransport

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewServerAppliesDefaults(t *testing.T) {
	srv := NewServer(ServerConfig{Address: ":8080"}, http.NewServeMux())

	require.Equal(t, ":8080", srv.Addr)
	require.Equal(t, defaultReadTimeout, srv.ReadTimeout)
	require.Equal(t, defaultReadHeaderTimeout, srv.ReadHeaderTimeout)
	require.Equal(t, defaultWriteTimeout, srv.WriteTimeout)
	require.Equal(t, defaultIdleTimeout, srv.IdleTimeout)
	require.Equal(t, defaultMaxHeaderBytes, srv.MaxHeaderBytes)
}

func TestNewServerKeepsExplicitTimeouts(t *testing.T) {
	srv := NewServer(ServerConfig{
		Address:      ":9090",
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 3 * time.Second,
		IdleTimeout:  4 * time.Second,
	}, http.NewServeMux())

	require.Equal(t, 2*time.Second, srv.ReadTimeout)
	require.Equal(t, 3*time.Second, srv.WriteTimeout)
	require.Equal(t, 4*time.Second, srv.IdleTimeout)
}
