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
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// JSONServer exposes a Stats snapshot over plain HTTP JSON, the way
// ptp4u/stats/json.go's JSONStats does for the PTP server.
type JSONServer struct {
	stats *Stats
}

// NewJSONServer wraps stats for HTTP export.
func NewJSONServer(stats *Stats) *JSONServer {
	return &JSONServer{stats: stats}
}

// Start runs the JSON HTTP server and blocks until it fails.
func (j *JSONServer) Start(monitoringPort int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", j.handleRequest)
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("starting stats json server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (j *JSONServer) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(j.stats.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(js); err != nil {
		log.Errorf("failed to reply to stats request: %v", err)
	}
}
