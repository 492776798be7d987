/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Command beacond runs the beaconmq broker: it loads a YAML configuration,
// wires the reference collaborator implementations (session, ACL,
// capability, broker, connection manager, hook bus, metrics) into the
// transport layer, and serves MQTT over TCP and WebSocket until signaled.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beaconmq/beacon/config"
	"github.com/beaconmq/beacon/internal/acl"
	"github.com/beaconmq/beacon/internal/broker"
	"github.com/beaconmq/beacon/internal/capability"
	"github.com/beaconmq/beacon/internal/connmgr"
	"github.com/beaconmq/beacon/internal/engine"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/metrics"
	"github.com/beaconmq/beacon/internal/session"
	"github.com/beaconmq/beacon/internal/transport"
	"github.com/beaconmq/beacon/internal/xlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/zipkin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var log = xlog.LoggerModule("beacond")

func main() {
	cfgPath := flag.String("config", "beacon.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	if cfg.Mqtt.LogFile != "" {
		if err := xlog.Configure(cfg.Mqtt.LogFile, 100, 10, 30); err != nil {
			log.Fatal("failed to configure logging", zap.Error(err))
		}
		log = xlog.LoggerModule("beacond")
	}

	if tp, err := newTracerProvider(cfg); err != nil {
		log.Warn("tracing exporter disabled", zap.Error(err))
	} else if tp != nil {
		otel.SetTracerProvider(tp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(ctx)
		}()
	}

	srv := buildServer(cfg)

	errs := make(chan error, 2)
	go func() { errs <- srv.ServeTCP() }()
	go func() { errs <- srv.ServeWS() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errs:
		log.Error("listener exited", zap.Error(err))
	case s := <-sig:
		log.Info("shutting down", zap.String("signal", s.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// beaconTarget breaks the broker.Router/session.Store construction cycle:
// each needs a reference to the other before either can be built.
type beaconTarget struct{ store *session.Store }

func (t *beaconTarget) Push(ctx context.Context, clientID []byte, msg engine.Message, qos byte) error {
	return t.store.Push(ctx, clientID, msg, qos)
}

// buildServer wires every reference collaborator (spec SPEC_FULL §11) into
// a single transport.Server bound to cfg's default zone.
func buildServer(cfg *config.Config) *transport.Server {
	target := &beaconTarget{}
	router := broker.New(target)
	store := session.New(router)
	target.store = store

	accessControl := acl.New()
	caps := capability.New(cfg.Zones)
	conns := connmgr.New()
	bus := hook.NewBus()
	sink := metrics.New()

	collab := transport.Collaborators{
		Session:       store,
		ACL:           accessControl,
		Caps:          caps,
		ConnMgr:       conns,
		BrokerRouting: router,
		Hooks:         bus,
		Metrics:       sink,
		Attach:        store.AttachTarget,
		Detach:        store.DetachTarget,
	}

	zone, ok := cfg.Zones[cfg.Mqtt.DefaultZone]
	if !ok {
		zone = config.DefaultZone()
	}

	return transport.New(cfg.Mqtt.TCPListen, cfg.Mqtt.WSListen, cfg.Mqtt.DefaultZone, zone, collab)
}

// newTracerProvider wires the jaeger/zipkin exporter the teacher's go.mod
// depends on, preferring Jaeger when both endpoints are configured; nil,
// nil means "leave the global no-op tracer provider in place".
func newTracerProvider(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	switch {
	case cfg.Mqtt.JaegerEndpoint != "":
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Mqtt.JaegerEndpoint)))
		if err != nil {
			return nil, err
		}
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
	case cfg.Mqtt.ZipkinEndpoint != "":
		exp, err := zipkin.New(cfg.Mqtt.ZipkinEndpoint)
		if err != nil {
			return nil, err
		}
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp)), nil
	default:
		return nil, nil
	}
}
