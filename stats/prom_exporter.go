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

package stats

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter republishes a Stats snapshot as Prometheus gauges.
// sptp/stats/prom_exporter.go scrapes its own counters over HTTP from a
// separate exporter process; our producer/consumer daemons hold the
// Stats value directly, so this reads the snapshot in-process on each
// scrape tick instead of round-tripping through localhost HTTP.
type PrometheusExporter struct {
	stats      *Stats
	registry   *prometheus.Registry
	listenPort int
	interval   time.Duration
}

// NewPrometheusExporter creates an exporter over stats.
func NewPrometheusExporter(stats *Stats, listenPort int, scrapeInterval time.Duration) *PrometheusExporter {
	return &PrometheusExporter{
		stats:      stats,
		registry:   prometheus.NewRegistry(),
		listenPort: listenPort,
		interval:   scrapeInterval,
	}
}

// Start launches the periodic scrape loop and the /metrics HTTP handler.
// It blocks serving HTTP; call it from its own goroutine.
func (e *PrometheusExporter) Start() error {
	go func() {
		for {
			e.scrapeMetrics()
			time.Sleep(e.interval)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		e.registry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))
	addr := fmt.Sprintf(":%d", e.listenPort)
	log.Infof("starting prometheus exporter on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (e *PrometheusExporter) scrapeMetrics() {
	for mkey, mval := range e.stats.Snapshot() {
		promCollector := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: flattenKey(mkey),
			Help: mkey,
		})
		if err := e.registry.Register(promCollector); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				promCollector = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("failed to register metric %s: %v", mkey, err)
				continue
			}
		}
		promCollector.Set(float64(mval))
	}
}

func flattenKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, "=", "_")
	key = strings.ReplaceAll(key, "/", "_")
	return key
}
