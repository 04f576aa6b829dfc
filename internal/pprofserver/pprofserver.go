package pprofserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/myrjola/orb/internal/errors"
)

// Handle registers the profiling endpoints on mux.
func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServer(addr string) *http.Server {
	mux := http.NewServeMux()
	Handle(mux)
	return &http.Server{ //nolint:exhaustruct // defaults are fine on loopback
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}
}

// Launch a pprof server at the ipv6 loopback address ::1 and given port. It shuts down when ctx is done.
func Launch(ctx context.Context, port string, logger *slog.Logger) {
	addr := fmt.Sprintf("[::1]%s", port)
	srv := newServer(addr)
	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			logger.LogAttrs(context.Background(), slog.LevelWarn, "close pprof server", errors.SlogError(err))
		}
	}()
	go func() {
		logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			err = errors.Wrap(err, "pprof server", slog.String("addr", addr))
			logger.LogAttrs(ctx, slog.LevelWarn, "pprof server stopped", errors.SlogError(err))
		}
	}()
}
