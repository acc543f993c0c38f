package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	srv := New(":8080", http.NewServeMux())

	assert.Equal(t, ":8080", srv.Addr)
	assert.NotNil(t, srv.Handler)
	// The write timeout must cover a dual-capture enrollment: two 30s capture
	// windows back to back.
	assert.GreaterOrEqual(t, srv.WriteTimeout, 2*30*time.Second)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}
