// Package node is the shape shared by every HTTP-serving process.
package node

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Node is a named HTTP service with its own router.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
}

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// NormalizeOrigins falls back to the local dev origin when none are configured.
func NormalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

// Serve runs n on addr until ctx is cancelled, then drains open requests.
func Serve(ctx context.Context, n Node, addr string) error {
	srv := &http.Server{Addr: addr, Handler: n.HTTPRouter(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
