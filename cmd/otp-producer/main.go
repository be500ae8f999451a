/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/esta-otp/otp/config"
	"github.com/esta-otp/otp/producer"
	"github.com/esta-otp/otp/stats"
	"github.com/esta-otp/otp/transport"
	"github.com/esta-otp/otp/wire"
)

func main() {
	var (
		cfgPath   string
		loglevel  string
		pprofAddr string
	)
	flag.StringVar(&cfgPath, "config", "", "Path to a YAML config describing owned points")
	flag.StringVar(&loglevel, "loglevel", "warning", "Set a log level. Can be: debug, info, warning, error")
	flag.StringVar(&pprofAddr, "pprofaddr", "", "host:port for the pprof to bind")
	flag.Parse()

	switch loglevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", loglevel)
	}

	if cfgPath == "" {
		log.Fatal("otp-producer requires -config")
	}
	c, err := config.ReadProducerConfig(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if pprofAddr != "" {
		log.Warningf("Starting profiler on %s", pprofAddr)
		go func() {
			log.Println(http.ListenAndServe(pprofAddr, nil))
		}()
	}

	cid, err := wire.ParseCID(c.CID)
	if err != nil {
		if c.CID != "" {
			log.Fatalf("parsing cid %q: %v", c.CID, err)
		}
		cid = wire.NewCID()
		log.Warningf("no cid configured, generated %s", cid)
	}
	name := wire.NewName(c.Name)

	localAddr := &net.UDPAddr{IP: net.IPv4zero, Port: wire.OTPPort}
	net4, err := transport.Listen(localAddr)
	if err != nil {
		log.Fatalf("binding UDP socket: %v", err)
	}
	defer net4.Close()

	st := stats.New()

	js := stats.NewJSONServer(st)
	go func() {
		if err := js.Start(c.MonitoringPort); err != nil {
			log.Errorf("JSON monitoring server stopped: %v", err)
		}
	}()

	prom := stats.NewPrometheusExporter(st, c.PrometheusPort, time.Second)
	go func() {
		if err := prom.Start(); err != nil {
			log.Errorf("Prometheus exporter stopped: %v", err)
		}
	}()

	p := producer.New(cid, name, net4, transport.SystemClock, st)
	for _, pc := range c.Points {
		p.AddPoint(pc.Address(), wire.Priority(pc.Priority), wire.NewName(pc.Name))
		if err := net4.JoinGroup(producer.TransformGroup(pc.Address().System), nil); err != nil {
			log.Warningf("joining transform group for system %d: %v", pc.Address().System, err)
		}
	}
	if err := net4.JoinGroup(producer.AdvertisementGroup(), nil); err != nil {
		log.Fatalf("joining advertisement group: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("otp-producer %s (%s) starting with %d points", cid, name, len(c.Points))
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("producer run failed: %v", err)
	}
}
