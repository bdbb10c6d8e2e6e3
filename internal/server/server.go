package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arwahdevops/mssql2mysql/internal/config"
	"github.com/arwahdevops/mssql2mysql/internal/db"
	"github.com/arwahdevops/mssql2mysql/internal/metrics"
)

// RunHTTPServer serves /metrics, /healthz, /readyz and optionally pprof until
// ctx is cancelled.
func RunHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	metricsStore *metrics.Store,
	srcConn *db.Connector,
	dstConn *db.Connector,
	logger *zap.Logger,
) {
	log := logger.Named("http-server")

	addr := fmt.Sprintf(":%d", cfg.MetricsPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      newMux(cfg.EnablePprof, metricsStore, srcConn, dstConn, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server ListenAndServe error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
}

func newMux(enablePprof bool, metricsStore *metrics.Store, srcConn, dstConn *db.Connector, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(metricsStore.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		var srcErr, dstErr error
		var wg sync.WaitGroup
		ping := func(conn *db.Connector, label string, out *error) {
			if conn == nil {
				*out = fmt.Errorf("%s connection not established", label)
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				*out = conn.Ping(pingCtx)
			}()
		}
		ping(srcConn, "source", &srcErr)
		ping(dstConn, "destination", &dstErr)
		wg.Wait()

		if srcErr == nil && dstErr == nil {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "Ready")
			return
		}
		log.Warn("Readiness check failed", zap.NamedError("src_ping_error", srcErr), zap.NamedError("dst_ping_error", dstErr))
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "Not Ready: source_db_status=%s, destination_db_status=%s\n",
			formatPingError(srcErr), formatPingError(dstErr))
	})

	if enablePprof {
		log.Info("Enabling pprof endpoints on /debug/pprof/")
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func formatPingError(err error) string {
	if err == nil {
		return "OK"
	}
	return fmt.Sprintf("Error (%v)", err)
}
