// Copyright 2026 evofuzz project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/evofuzz/evofuzz/pkg/log"
	"github.com/evofuzz/evofuzz/pkg/stat"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (r *run) serveHTTP() {
	mux := http.NewServeMux()
	handle := func(pattern string, handler func(http.ResponseWriter, *http.Request)) {
		mux.Handle(pattern, handlers.CompressHandler(http.HandlerFunc(handler)))
	}
	handle("/", r.httpSummary)
	handle("/stats", r.httpStats)
	handle("/corpus", r.httpCorpus)
	handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}).ServeHTTP)
	// Browsers like to request this, without special handler this goes to / handler.
	handle("/favicon.ico", func(w http.ResponseWriter, req *http.Request) {})

	log.Logf(0, "serving http on http://%v", r.cfg.HTTP)
	go func() {
		err := http.ListenAndServe(r.cfg.HTTP, mux)
		if err != nil {
			log.Fatalf("failed to listen on %v: %v", r.cfg.HTTP, err)
		}
	}()
}

func (r *run) httpSummary(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "target: %v\nrun: %v\niterations: %v\n\n",
		r.cfg.Target, r.fuzzer.Config.RunID, r.fuzzer.Iterations())
	for _, v := range r.stats.Collect(stat.All) {
		fmt.Fprintf(w, "%v: %v\n", v.Name, v.Value)
	}
	fmt.Fprintf(w, "\nworkers:\n")
	for i, state := range r.fuzzer.States() {
		fmt.Fprintf(w, "  proc%v: %v\n", i, state)
	}
}

func (r *run) httpStats(w http.ResponseWriter, req *http.Request) {
	data, err := json.MarshalIndent(r.stats.Collect(stat.All), "", "\t")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal stats: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

type uiCorpusItem struct {
	Sig        string  `json:"sig"`
	Complexity float64 `json:"complexity"`
	Features   int     `json:"features"`
	Owned      int     `json:"owned"`
	Score      float64 `json:"score"`
}

func (r *run) httpCorpus(w http.ResponseWriter, req *http.Request) {
	var items []uiCorpusItem
	for _, item := range r.fuzzer.Corpus().Items() {
		items = append(items, uiCorpusItem{
			Sig:        item.Sig,
			Complexity: item.Complexity,
			Features:   len(item.Features),
			Owned:      item.Owned(),
			Score:      item.Score(),
		})
	}
	data, err := json.MarshalIndent(items, "", "\t")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal corpus: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
