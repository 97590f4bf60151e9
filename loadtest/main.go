package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type stats struct {
	connected atomic.Int64
	failed    atomic.Int64
	received  atomic.Int64
	latencyNs atomic.Int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	clients := flag.Int("clients", 500, "concurrent stream clients")
	wsShare := flag.Float64("ws", 0.2, "fraction of clients using the WebSocket stream")
	events := flag.Int("events", 20, "events to trigger")
	interval := flag.Duration("interval", 100*time.Millisecond, "pause between triggers")
	token := flag.String("token", "", "access token for authenticated streams")
	internalKey := flag.String("internal-key", "", "X-Internal-Key for the trigger endpoint")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	log.Info("starting stress test", slog.Int("clients", *clients), slog.Int("events", *events))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var st stats
	var wg sync.WaitGroup
	wsClients := int(float64(*clients) * *wsShare)

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var err error
			if id < wsClients {
				err = runWS(ctx, *baseURL, *token, &st)
			} else {
				err = runSSE(ctx, *baseURL, *token, &st)
			}
			if err != nil && ctx.Err() == nil {
				st.failed.Add(1)
				log.Warn("client failed", slog.Int("client", id), slog.String("error", err.Error()))
			}
		}(i)
	}

	deadline := time.Now().Add(10 * time.Second)
	for st.connected.Load()+st.failed.Load() < int64(*clients) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	log.Info("clients connected", slog.Int64("connected", st.connected.Load()), slog.Int64("failed", st.failed.Load()))

	for i := 0; i < *events; i++ {
		active, err := trigger(*baseURL, *internalKey, i)
		if err != nil {
			log.Error("trigger failed", slog.Int("event", i), slog.String("error", err.Error()))
			continue
		}
		log.Debug("triggered", slog.Int("event", i), slog.Int("active", active))
		time.Sleep(*interval)
	}

	time.Sleep(time.Second)
	cancel()
	wg.Wait()

	expected := st.connected.Load() * int64(*events)
	received := st.received.Load()
	var avg time.Duration
	if received > 0 {
		avg = time.Duration(st.latencyNs.Load() / received)
	}
	log.Info("load test complete",
		slog.Int64("expected", expected),
		slog.Int64("received", received),
		slog.Duration("avg_latency", avg),
	)
}

func trigger(baseURL, internalKey string, seq int) (int, error) {
	body, _ := json.Marshal(map[string]any{
		"type": "notification:new",
		"data": map[string]any{
			"user_id":      "loadtest",
			"notification": map[string]any{"id": fmt.Sprint(seq), "titulo": "Load", "mensaje": "test", "tipo": "info"},
		},
	})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/events", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if internalKey != "" {
		req.Header.Set("X-Internal-Key", internalKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out struct {
		Success           bool `json:"success"`
		ActiveConnections int  `json:"activeConnections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	if !out.Success {
		return 0, fmt.Errorf("trigger answered %s", resp.Status)
	}
	return out.ActiveConnections, nil
}

func runSSE(ctx context.Context, baseURL, token string, st *stats) error {
	url := baseURL + "/api/events"
	if token != "" {
		url += "?token=" + token
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream answered %s", resp.Status)
	}

	r := bufio.NewReader(resp.Body)
	first := true
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		payload, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
		if !ok {
			continue
		}
		if first {
			first = false
			st.connected.Add(1)
			continue
		}
		record(st, []byte(payload))
	}
}

func runWS(ctx context.Context, baseURL, token string, st *stats) error {
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/events/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	if _, _, err := conn.ReadMessage(); err != nil {
		return err
	}
	st.connected.Add(1)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		record(st, msg)
	}
}

func record(st *stats, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	st.received.Add(1)
	if sent, err := time.Parse("2006-01-02T15:04:05.000Z07:00", env.Timestamp); err == nil {
		st.latencyNs.Add(int64(time.Since(sent)))
	}
}
