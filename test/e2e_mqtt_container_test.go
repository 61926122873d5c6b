package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kfloy/apron/core/engine"
	"github.com/kfloy/apron/core/heartbeat"
	coremetrics "github.com/kfloy/apron/core/metrics"
	"github.com/kfloy/apron/core/results"
	"github.com/kfloy/apron/infra/metrics"
	"github.com/kfloy/apron/infra/mqtt"
	"github.com/kfloy/apron/sim"
	"github.com/kfloy/apron/test/util"
)

type progressEnvelope struct {
	MessageID string `json:"message_id"`
	heartbeat.Progress
}

// collectProgress subscribes to the run progress topic and collects envelopes.
func collectProgress(t *testing.T, broker string) (*sync.Map, func()) {
	t.Helper()
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("observer")
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("observer connect: %v", token.Error())
	}
	var seen sync.Map
	if token := cli.Subscribe("apron/runs/+/progress", 1, func(_ paho.Client, m paho.Message) {
		var env progressEnvelope
		if err := json.Unmarshal(m.Payload(), &env); err != nil {
			return
		}
		seen.Store(env.MessageID, env)
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	return &seen, func() { cli.Disconnect(100) }
}

func TestFullRunOverMQTTContainer(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto not available: %v", err)
	}
	defer cleanup()

	seen, stop := collectProgress(t, broker)
	defer stop()

	pub, err := mqtt.NewPahoPublisher(mqtt.Config{
		Broker:    broker,
		ClientID:  "apron-e2e",
		TopicRoot: "apron",
		QoS:       1,
	})
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	store, err := results.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	e := engine.New(engine.Options{
		Metrics:   sink,
		Results:   store,
		Heartbeat: pub,
	})
	defer func() { _ = e.Close() }()

	gen := sim.New(sim.Config{
		Seed: 99, Stands: 12, Flights: 40,
		Day: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	snap := gen.Snapshot()
	res, err := e.RunAllocation(ctx, engine.RunRequest{
		ScheduleID: "e2e-sched",
		Snapshot:   snap,
		Rows:       gen.Rows(snap),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.State != engine.RunCompleted {
		t.Fatalf("state = %s, want completed", res.State)
	}

	// Every phase heartbeat, including the terminal one, arrives over MQTT.
	wantPhases := []string{"validate", "maintenance", "allocate", "capacity", "utilisation", "completed"}
	deadline := time.Now().Add(5 * time.Second)
	got := map[string]bool{}
	for time.Now().Before(deadline) && len(got) < len(wantPhases) {
		seen.Range(func(_, v any) bool {
			env := v.(progressEnvelope)
			if env.RunID == res.RunID {
				got[env.Phase] = true
			}
			return true
		})
		time.Sleep(50 * time.Millisecond)
	}
	for _, phase := range wantPhases {
		if !got[phase] {
			t.Errorf("phase %s heartbeat not received", phase)
		}
	}

	// The run record is durable.
	recs, err := store.Runs(ctx, results.Query{ScheduleID: "e2e-sched"})
	if err != nil {
		t.Fatalf("query runs: %v", err)
	}
	if len(recs) != 1 || recs[0].State != "completed" {
		t.Fatalf("records = %+v", recs)
	}

	// Run metrics are exposed through Prometheus.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := util.WaitForMetric(waitCtx, ts.URL+"/metrics", `apron_runs_total{schedule_id="e2e-sched",state="completed"} 1`); err != nil {
		t.Fatalf("metric wait: %v", err)
	}
}
