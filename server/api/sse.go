//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"trpc.group/trpc-go/trpc-post-agent-go/event"
	"trpc.group/trpc-go/trpc-post-agent-go/log"
)

// stream writes events as "event: <kind>" / "data: <json>" frames until the
// channel closes or the client goes away.
func stream(w http.ResponseWriter, r *http.Request, events <-chan *event.Event) {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}
	for ev := range events {
		if err := writeEvent(w, ev); err != nil {
			log.Debugf("api: stream of thread %s closed: %v", ev.ThreadID, err)
			// Keep draining so the runner is not blocked on delivery.
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
		if r.Context().Err() != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev *event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
