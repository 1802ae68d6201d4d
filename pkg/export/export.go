package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/reserve"
	"github.com/kilianp07/rotaplan/core/sensitivity"
)

// Plan is the exported result of an optimization run.
type Plan struct {
	RunID     string             `json:"run_id"`
	Generated time.Time          `json:"generated"`
	Rotations []Rotation         `json:"rotations"`
	Finance   *finance.Breakdown `json:"finance,omitempty"`
	Reserve   *reserve.Report    `json:"reserve,omitempty"`
}

// Rotation is a rotation with its derived figures.
type Rotation struct {
	model.Rotation
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TripKM      float64   `json:"trip_km"`
	DeadheadKM  float64   `json:"deadhead_km"`
	DrivingMins float64   `json:"driving_minutes"`
	MultiDay    bool      `json:"multi_day"`
}

// NewPlan wraps the rotations for export.
func NewPlan(runID string, rs []model.Rotation, bd *finance.Breakdown, rep *reserve.Report) Plan {
	p := Plan{RunID: runID, Generated: time.Now().UTC(), Finance: bd, Reserve: rep}
	p.Rotations = make([]Rotation, len(rs))
	for i, r := range rs {
		p.Rotations[i] = Rotation{
			Rotation:    r,
			Start:       r.Start(),
			End:         r.End(),
			TripKM:      r.TripKM(),
			DeadheadKM:  r.DeadheadKM(),
			DrivingMins: r.DrivingTime().Minutes(),
			MultiDay:    r.MultiDay(),
		}
	}
	return p
}

// WriteJSON writes the plan to w in indented JSON format.
func WriteJSON(w io.Writer, p Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

var rotationHeader = []string{
	"rotation_id", "vehicle_type", "fuel_type", "seq", "trip_id", "date",
	"origin", "destination", "departure", "arrival", "distance_km",
	"idle_before_min", "deadhead_km_before", "energy_event",
}

// WriteCSV writes one row per trip of every rotation. Energy events are listed
// on the trip they follow.
func WriteCSV(w io.Writer, rs []model.Rotation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rotationHeader); err != nil {
		return err
	}
	for _, r := range rs {
		events := make(map[int][]string)
		for _, ev := range r.Events {
			events[ev.AfterTrip] = append(events[ev.AfterTrip], fmt.Sprintf("%s@%s %s +%.0fkm",
				ev.Kind, ev.Station, ev.Start.Format("15:04"), ev.AddedKM))
		}
		fuel := string(r.FuelType)
		if fuel == "" {
			fuel = string(model.FuelDiesel)
		}
		for i, t := range r.Trips {
			idle, dh := "", ""
			if i > 0 {
				l := r.Links[i-1]
				idle = strconv.FormatFloat(l.Idle.Minutes(), 'f', -1, 64)
				dh = strconv.FormatFloat(l.DeadheadKM, 'f', -1, 64)
			}
			rec := []string{
				r.ID,
				r.VehicleType,
				fuel,
				strconv.Itoa(i + 1),
				t.ID,
				t.ServiceDay().Format(time.DateOnly),
				t.Origin,
				t.Destination,
				t.Departure.Format(time.RFC3339),
				t.Arrival.Format(time.RFC3339),
				strconv.FormatFloat(t.DistanceKM, 'f', -1, 64),
				idle,
				dh,
				strings.Join(events[i], "; "),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFinanceCSV writes the per-rotation financial results.
func WriteFinanceCSV(w io.Writer, bd finance.Breakdown) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rotation_id", "vehicle_type", "fuel", "km", "paid_hours", "revenue", "labor", "energy", "margin"}); err != nil {
		return err
	}
	for _, r := range bd.Rotations {
		rec := []string{
			r.RotationID,
			r.Vehicle,
			string(r.Fuel),
			money(r.KM),
			money(r.Labor.PaidHours),
			money(r.Revenue),
			money(r.Labor.Total),
			money(r.Energy.Cost),
			money(r.Margin),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSensitivityCSV writes a turnaround sweep.
func WriteSensitivityCSV(w io.Writer, rows []sensitivity.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vehicle_type", "turnaround_min", "vehicles", "delta", "utilisation_pct", "base"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.VehicleType,
			strconv.Itoa(r.Turnaround),
			strconv.Itoa(r.Vehicles),
			strconv.Itoa(r.Delta),
			strconv.FormatFloat(r.Utilisation, 'f', 1, 64),
			strconv.FormatBool(r.Base),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReserveCSV writes the coverage of every reserve requirement.
func WriteReserveCSV(w io.Writer, rep reserve.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"station", "start", "end", "vehicle_type", "required", "covered", "shortfall", "rotations", "remark"}); err != nil {
		return err
	}
	for _, c := range rep.Coverage {
		q := c.Requirement
		rec := []string{
			q.Station,
			q.Start.Format(time.RFC3339),
			q.End.Format(time.RFC3339),
			q.VehicleType,
			strconv.Itoa(q.Count),
			strconv.Itoa(c.Covered),
			strconv.Itoa(c.Shortfall),
			strings.Join(c.Rotations, " "),
			q.Remark,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// WriteFile creates path and hands it to write. Parent directories are created.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
