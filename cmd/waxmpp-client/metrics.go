package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
)

// newRegisterer builds a fresh Prometheus registry and serves it on
// :9090/metrics in a background goroutine.
func newRegisterer() prometheus.Registerer {
	reg := prometheus.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(":9090", mux); err != nil {
			zlog.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return reg
}
