// Package validate performs row-level validation of ingested flight records
// against the reference registry and emits canonical flights.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kfloy/apron/core/logger"
	"github.com/kfloy/apron/core/model"
	"github.com/kfloy/apron/core/registry"
)

var flightNumberRe = regexp.MustCompile(`^\d+[A-Z]?$`)

// timeLayouts are accepted for scheduled and estimated timestamps, tried in
// order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Outcome is the validation result for one row. Flight is populated whenever
// enough fields parsed to build one, even if the row is invalid.
type Outcome struct {
	Row    int
	Flight model.Flight
	Issues []Issue
	Status model.ValidationStatus
}

// Valid reports whether the row produced a usable flight.
func (o Outcome) Valid() bool { return o.Status == model.ValidationValid }

// Validator checks raw rows against one reference snapshot.
type Validator struct {
	reg       *registry.Registry
	terminals map[string]bool
	now       func() time.Time
	log       logger.Logger
}

// New creates a Validator bound to the registry. The now function is used to
// flag schedules in the past and defaults to time.Now.
func New(reg *registry.Registry, log logger.Logger) *Validator {
	terminals := make(map[string]bool)
	for _, s := range reg.ActiveStands() {
		if s.Terminal != "" {
			terminals[s.Terminal] = true
		}
	}
	return &Validator{reg: reg, terminals: terminals, now: time.Now, log: log}
}

// SetNow overrides the clock, for tests.
func (v *Validator) SetNow(now func() time.Time) { v.now = now }

// Validate checks all rows with a bounded worker pool and returns outcomes in
// row order. Rows are independent; the pass is O(N) with bounded memory.
func (v *Validator) Validate(ctx context.Context, rows []model.RawFlight, workers int) []Outcome {
	if workers < 1 {
		workers = 1
	}
	if workers > len(rows) {
		workers = len(rows)
	}
	outcomes := make([]Outcome, len(rows))
	if len(rows) == 0 {
		return outcomes
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				outcomes[i] = v.validateRow(i, rows[i])
			}
		}()
	}
feed:
	for i := range rows {
		select {
		case idx <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(idx)
	wg.Wait()

	valid := 0
	for _, o := range outcomes {
		if o.Valid() {
			valid++
		}
	}
	v.log.Infof("validated %d rows, %d valid", len(rows), valid)
	return outcomes
}

func (v *Validator) validateRow(row int, raw model.RawFlight) Outcome {
	out := Outcome{Row: row}
	add := func(code IssueCode, sev Severity, field, kind, msg string) {
		out.Issues = append(out.Issues, Issue{Code: code, Severity: sev, Field: field, Kind: kind, Message: msg})
	}

	f := model.Flight{
		AirlineCode:  strings.ToUpper(strings.TrimSpace(raw.AirlineCode)),
		OtherAirport: strings.ToUpper(strings.TrimSpace(raw.OtherAirport)),
		TypeCode:     strings.TrimSpace(raw.TypeCode),
		Terminal:     strings.TrimSpace(raw.Terminal),
		Registration: strings.ToUpper(strings.TrimSpace(raw.Registration)),
	}

	number := strings.ToUpper(strings.TrimSpace(raw.FlightNumber))
	switch {
	case number == "":
		add(RequiredFieldMissing, SeverityError, "flight_number", "", "flight number is required")
	case !flightNumberRe.MatchString(number):
		add(FormatInvalid, SeverityError, "flight_number", "", fmt.Sprintf("flight number %q does not match digits plus optional letter", number))
	default:
		f.FlightNumber = number
	}

	switch strings.ToUpper(strings.TrimSpace(raw.Nature)) {
	case "A", "ARR", "ARRIVAL":
		f.Nature = model.Arrival
	case "D", "DEP", "DEPARTURE":
		f.Nature = model.Departure
	case "":
		add(RequiredFieldMissing, SeverityError, "nature", "", "nature is required")
	default:
		add(FormatInvalid, SeverityError, "nature", "", fmt.Sprintf("nature %q is not arrival or departure", raw.Nature))
	}

	if f.AirlineCode == "" {
		add(RequiredFieldMissing, SeverityError, "airline_code", "", "airline code is required")
	} else if !v.reg.KnownAirline(f.AirlineCode) {
		add(CodeUnknown, SeverityError, "airline_code", "airline", fmt.Sprintf("unknown airline %s", f.AirlineCode))
	}

	if f.OtherAirport == "" {
		add(RequiredFieldMissing, SeverityError, "other_airport", "", "other airport is required")
	} else if !v.reg.KnownAirport(f.OtherAirport) {
		add(CodeUnknown, SeverityError, "other_airport", "airport", fmt.Sprintf("unknown airport %s", f.OtherAirport))
	}

	if f.TypeCode == "" {
		add(RequiredFieldMissing, SeverityError, "type_code", "", "aircraft type is required")
	} else if _, err := v.reg.AircraftType(f.TypeCode); err != nil {
		add(CodeUnknown, SeverityError, "type_code", "aircraft_type", fmt.Sprintf("unknown aircraft type %s", f.TypeCode))
	}

	scheduled := strings.TrimSpace(raw.ScheduledAt)
	if scheduled == "" {
		add(RequiredFieldMissing, SeverityError, "scheduled_at", "", "scheduled time is required")
	} else if t, ok := parseTime(scheduled); ok {
		f.ScheduledAt = t
		if t.Before(v.now()) {
			add(DateInvalid, SeverityWarning, "scheduled_at", "", "scheduled time is in the past")
		}
	} else {
		add(DateInvalid, SeverityError, "scheduled_at", "", fmt.Sprintf("unparseable scheduled time %q", scheduled))
	}

	if est := strings.TrimSpace(raw.EstimatedAt); est != "" {
		if t, ok := parseTime(est); ok {
			f.EstimatedAt = t
		} else {
			add(DateInvalid, SeverityWarning, "estimated_at", "", fmt.Sprintf("unparseable estimated time %q", est))
		}
	}

	if f.Terminal != "" && len(v.terminals) > 0 && !v.terminals[f.Terminal] {
		add(TerminalInvalid, SeverityWarning, "terminal", "", fmt.Sprintf("terminal %s matches no stand", f.Terminal))
	}

	if seats := strings.TrimSpace(raw.SeatCapacity); seats != "" {
		n, err := strconv.Atoi(seats)
		switch {
		case err != nil:
			add(FormatInvalid, SeverityWarning, "seat_capacity", "", fmt.Sprintf("unparseable seat capacity %q", seats))
		case n < 1 || n > 1000:
			add(CapacityImplausible, SeverityWarning, "seat_capacity", "", fmt.Sprintf("seat capacity %d is implausible", n))
		default:
			f.SeatCapacity = n
		}
	}

	// Effective turnaround: max of rule and type default, clamped to
	// [default, 4*default].
	if f.TypeCode != "" {
		if t, err := v.reg.AircraftType(f.TypeCode); err == nil {
			minutes, terr := v.reg.Turnaround(f.TypeCode)
			if terr != nil {
				minutes = t.DefaultTurnaroundMinutes
			}
			if minutes < t.DefaultTurnaroundMinutes {
				minutes = t.DefaultTurnaroundMinutes
			}
			if max := t.DefaultTurnaroundMinutes * 4; minutes > max {
				minutes = max
			}
			f.TurnaroundMinutes = minutes
		}
	}

	f.ID = flightID(f)
	out.Status = model.ValidationValid
	for _, iss := range out.Issues {
		if iss.Severity == SeverityError {
			out.Status = model.ValidationInvalid
			break
		}
	}
	f.Status = out.Status
	out.Flight = f
	return out
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// flightID derives a deterministic identifier from the canonical fields so
// that re-validating the same rows yields the same ids.
func flightID(f model.Flight) string {
	ts := "unscheduled"
	if !f.ScheduledAt.IsZero() {
		ts = f.ScheduledAt.UTC().Format("20060102T1504")
	}
	return fmt.Sprintf("%s%s-%s-%s", f.AirlineCode, f.FlightNumber, f.Nature, ts)
}
