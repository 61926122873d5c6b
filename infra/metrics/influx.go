package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kfloy/apron/core/metrics"
	"github.com/kfloy/apron/infra/logger"
)

// InfluxSink writes run events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRunResult writes the run outcome as a line protocol event.
func (s *InfluxSink) RecordRunResult(res coremetrics.RunResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("allocation_run").
		AddTag("run_id", res.RunID).
		AddTag("schedule_id", res.ScheduleID).
		AddTag("state", res.State).
		AddTag("component", "engine").
		AddField("allocated", res.Allocated).
		AddField("unallocated", res.Unallocated).
		AddField("duration_ms", round3(res.Duration.Seconds()*1000)).
		SetTime(res.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPlacement writes one placement outcome.
func (s *InfluxSink) RecordPlacement(ev coremetrics.PlacementEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("placement_event").
		AddTag("run_id", ev.RunID).
		AddTag("flight_id", ev.FlightID).
		AddTag("placed", strconv.FormatBool(ev.Placed)).
		AddTag("component", "allocator")
	if ev.Placed {
		p = p.AddTag("stand_id", ev.StandID)
	} else {
		p = p.AddTag("reason", ev.Reason.String())
	}
	p = p.AddField("count", 1).SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCapacity writes each forecast cell as a line protocol event.
func (s *InfluxSink) RecordCapacity(cells []coremetrics.CapacityCell) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, c := range cells {
		p := write.NewPointWithMeasurement("capacity_cell").
			AddTag("slot_id", c.SlotID).
			AddTag("type_code", c.TypeCode).
			AddTag("component", "capacity").
			AddField("best", c.Best).
			AddField("worst", c.Worst).
			SetTime(c.Day)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordUtilisation writes one stand utilisation event.
func (s *InfluxSink) RecordUtilisation(ev coremetrics.UtilisationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("stand_utilisation").
		AddTag("run_id", ev.RunID).
		AddTag("stand_id", ev.StandID).
		AddTag("component", "utilisation").
		AddField("rate", round3(ev.UtilisationRate)).
		AddField("suboptimal", ev.Suboptimal).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
