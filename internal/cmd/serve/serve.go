/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package serve implements shmctl serve: an in-process manager exposed over HTTP.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/srediag/sysvshm/internal/cmd/cmdutil"
	"github.com/srediag/sysvshm/pkg/audit"
	"github.com/srediag/sysvshm/pkg/health"
	"github.com/srediag/sysvshm/pkg/metrics"
	"github.com/srediag/sysvshm/pkg/shm"
	"github.com/srediag/sysvshm/pkg/workload"
)

const namespace = "sysvshm"

var flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "addr",
		Value:   "127.0.0.1:9477",
		Usage:   "listen `address`",
		EnvVars: []string{"SYSVSHM_ADDR"},
	},
	&cli.Int64Flag{
		Name:  "audit-capacity",
		Value: audit.DefaultCapacity,
		Usage: "undrained audit events kept before dropping",
	},
	&cli.BoolFlag{
		Name:  "churn",
		Usage: "run a background workload so there is something to look at",
	},
}

func Command() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "serve /metrics, /live, /ready and /ipcs for an in-process manager",
		Flags:  flags,
		Action: serve,
	}
}

// Server bundles a manager with its HTTP surface.
type Server struct {
	Manager  *shm.Manager
	Audit    *audit.Recorder
	Registry *prometheus.Registry
	Handler  http.Handler
}

// New wires a manager to an audit trail, Prometheus and health probes.
func New(limits shm.Limits, log *zap.Logger, auditCapacity int64) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	events, err := metrics.NewEventCounter(reg, namespace)
	if err != nil {
		return nil, err
	}
	rec := audit.NewRecorder(auditCapacity)
	mgr, err := shm.New(limits,
		shm.WithLogger(log),
		shm.WithEventSink(shm.MultiSink{rec, events}),
		shm.WithMeter(otel.GetMeterProvider().Meter("github.com/srediag/sysvshm")),
		shm.WithTracer(otel.GetTracerProvider().Tracer("github.com/srediag/sysvshm")),
	)
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}
	if err := reg.Register(metrics.NewCollector(mgr, namespace)); err != nil {
		return nil, err
	}

	hopts := health.DefaultOptions()
	hopts.Registerer = reg
	probes := health.NewHandler(mgr, hopts)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/live", probes)
	mux.Handle("/ready", probes)
	mux.HandleFunc("/ipcs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := shm.FormatSegments(w, mgr.Segments()); err != nil {
			log.Warn("write ipcs", zap.Error(err))
		}
	})
	return &Server{Manager: mgr, Audit: rec, Registry: reg, Handler: mux}, nil
}

func serve(c *cli.Context) error {
	log := cmdutil.Logger(c, "serve")
	defer func() { _ = log.Sync() }()

	limits, err := cmdutil.Limits(c)
	if err != nil {
		return err
	}
	srv, err := New(limits, log, c.Int64("audit-capacity"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Audit.Forward(ctx, log.Named("audit"), 128, time.Second); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit forwarder stopped", zap.Error(err))
		}
	}()
	if c.Bool("churn") {
		go churn(ctx, srv.Manager, log)
	}

	hs := &http.Server{
		Addr:              c.String("addr"),
		Handler:           srv.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	log.Info("serving", zap.String("addr", hs.Addr))

	select {
	case err = <-errc:
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = hs.Shutdown(shutdown)
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	for _, e := range srv.Audit.Close() {
		log.Debug("undrained audit event", zap.Stringer("kind", e.Kind), zap.Stringer("id", e.ID))
	}
	return errors.Join(err, srv.Manager.Close(context.Background()))
}

func churn(ctx context.Context, mgr *shm.Manager, log *zap.Logger) {
	opts := workload.DefaultOptions()
	opts.Logger = log.Named("churn")
	for ctx.Err() == nil {
		if _, err := workload.Run(ctx, mgr, opts); err != nil {
			log.Error("churn", zap.Error(err))
			return
		}
		opts.Seed++
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}
}
