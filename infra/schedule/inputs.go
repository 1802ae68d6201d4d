package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/rotaplan/core/feasibility"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/core/reserve"
)

// LegRecord is one entry of the travel table file.
type LegRecord struct {
	From       string  `json:"from" yaml:"from"`
	To         string  `json:"to" yaml:"to"`
	Minutes    float64 `json:"minutes" yaml:"minutes"`
	DistanceKM float64 `json:"distance_km" yaml:"distance_km"`
	// Symmetric also registers the reverse direction.
	Symmetric bool `json:"symmetric,omitempty" yaml:"symmetric"`
}

// BuildMatrix converts leg records into a travel table.
func BuildMatrix(recs []LegRecord) (feasibility.Matrix, error) {
	m := feasibility.NewMatrix()
	var errs []error
	for i, r := range recs {
		if r.From == "" || r.To == "" || r.Minutes < 0 || r.DistanceKM < 0 {
			errs = append(errs, fmt.Errorf("leg %d (%s -> %s): invalid entry", i+1, r.From, r.To))
			continue
		}
		leg := feasibility.Leg{Duration: time.Duration(r.Minutes * float64(time.Minute)), DistanceKM: r.DistanceKM}
		m.Set(r.From, r.To, leg)
		if r.Symmetric {
			if _, ok := m.Lookup(r.To, r.From); !ok {
				m.Set(r.To, r.From, leg)
			}
		}
	}
	return m, errors.Join(errs...)
}

// LoadTravelTable reads a travel table from JSON or YAML.
func LoadTravelTable(path string) (feasibility.Matrix, error) {
	var recs []LegRecord
	if err := decodeFile(path, &recs); err != nil {
		return nil, err
	}
	return BuildMatrix(recs)
}

// StationRecord is one refuel or charge station.
type StationRecord struct {
	Name         string  `json:"name" yaml:"name"`
	Location     string  `json:"location" yaml:"location"`
	DriveMinutes float64 `json:"drive_minutes" yaml:"drive_minutes"`
	DistanceKM   float64 `json:"distance_km" yaml:"distance_km"`
	PowerKW      float64 `json:"power_kw,omitempty" yaml:"power_kw"`
}

// LoadStations reads stations from JSON or YAML.
func LoadStations(path string) ([]rangetrack.Station, error) {
	var recs []StationRecord
	if err := decodeFile(path, &recs); err != nil {
		return nil, err
	}
	out := make([]rangetrack.Station, 0, len(recs))
	for _, r := range recs {
		if r.Location == "" {
			return nil, fmt.Errorf("station %q: empty location", r.Name)
		}
		out = append(out, rangetrack.Station{
			Name: r.Name, Location: r.Location,
			DriveTime:  time.Duration(r.DriveMinutes * float64(time.Minute)),
			DistanceKM: r.DistanceKM, PowerKW: r.PowerKW,
		})
	}
	return out, nil
}

// ReserveRecord is one reserve requirement. Start and End are clock times on
// Date; an End before Start runs into the next day.
type ReserveRecord struct {
	Station     string `json:"station" yaml:"station"`
	Date        string `json:"date" yaml:"date"`
	Start       string `json:"start" yaml:"start"`
	End         string `json:"end" yaml:"end"`
	Count       int    `json:"count" yaml:"count"`
	VehicleType string `json:"vehicle_type,omitempty" yaml:"vehicle_type"`
	Remark      string `json:"remark,omitempty" yaml:"remark"`
}

// LoadReserves reads and validates reserve requirements.
func LoadReserves(path string, c Clock) ([]reserve.Requirement, error) {
	var recs []ReserveRecord
	if err := decodeFile(path, &recs); err != nil {
		return nil, err
	}
	out := make([]reserve.Requirement, 0, len(recs))
	var errs []error
	for i, r := range recs {
		req, err := r.requirement(c)
		if err == nil {
			err = req.Validate()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reserve %d: %w", i+1, err))
			continue
		}
		out = append(out, req)
	}
	return out, errors.Join(errs...)
}

func (r ReserveRecord) requirement(c Clock) (reserve.Requirement, error) {
	day, err := c.Date(r.Date)
	if err != nil {
		return reserve.Requirement{}, fmt.Errorf("date: %w", err)
	}
	start, err := c.At(day, r.Start)
	if err != nil {
		return reserve.Requirement{}, fmt.Errorf("start: %w", err)
	}
	end, err := c.At(day, r.End)
	if err != nil {
		return reserve.Requirement{}, fmt.Errorf("end: %w", err)
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return reserve.Requirement{
		Station: r.Station, Start: start, End: end, Count: r.Count,
		VehicleType: r.VehicleType, Remark: r.Remark,
	}, nil
}
