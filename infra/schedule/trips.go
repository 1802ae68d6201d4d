package schedule

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/rotaplan/core/model"
)

// TripRecord is the file representation of a trip. Numeric and boolean
// columns keep their raw text so a malformed value rejects only its trip.
type TripRecord struct {
	ID          string `json:"id" yaml:"id"`
	VehicleType string `json:"vehicle_type" yaml:"vehicle_type"`
	Date        string `json:"date" yaml:"date"`
	Origin      string `json:"origin" yaml:"origin"`
	Destination string `json:"destination" yaml:"destination"`
	Departure   string `json:"departure" yaml:"departure"`
	Arrival     string `json:"arrival" yaml:"arrival"`
	DistanceKM  Scalar `json:"distance_km" yaml:"distance_km"`
	Service     string `json:"service,omitempty" yaml:"service"`
	Reserve     Scalar `json:"reserve,omitempty" yaml:"reserve"`

	// err is set when the record itself could not be decoded.
	err error
}

// Scalar is the raw text of a JSON, YAML or CSV scalar.
type Scalar string

// UnmarshalJSON accepts strings, numbers, booleans and null. Any other value
// is kept verbatim and fails to parse later.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
	default:
		*s = Scalar(b)
	}
	return nil
}

// UnmarshalJSON decodes one trip. Decoding errors are kept on the record so
// the remaining trips still load.
func (r *TripRecord) UnmarshalJSON(b []byte) error {
	type plain TripRecord
	var p plain
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		var id struct {
			ID Scalar `json:"id"`
		}
		_ = json.Unmarshal(b, &id)
		*r = TripRecord{ID: string(id.ID), err: err}
		return nil
	}
	*r = TripRecord(p)
	return nil
}

// UnmarshalYAML decodes one trip, keeping decoding errors on the record.
func (r *TripRecord) UnmarshalYAML(n *yaml.Node) error {
	type plain TripRecord
	var p plain
	if err := n.Decode(&p); err != nil {
		*r = TripRecord{ID: yamlID(n), err: err}
		return nil
	}
	*r = TripRecord(p)
	return nil
}

func yamlID(n *yaml.Node) string {
	if n.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == "id" && n.Content[i+1].Kind == yaml.ScalarNode {
			return n.Content[i+1].Value
		}
	}
	return ""
}

// Trip converts the record. An arrival clock time before the departure is
// taken to be on the next day.
func (r TripRecord) Trip(c Clock) (model.Trip, error) {
	if r.err != nil {
		return model.Trip{}, r.err
	}
	var day time.Time
	if strings.TrimSpace(r.Date) != "" {
		d, err := c.Date(r.Date)
		if err != nil {
			return model.Trip{}, fmt.Errorf("date: %w", err)
		}
		day = d
	}
	dep, err := c.At(day, r.Departure)
	if err != nil {
		return model.Trip{}, fmt.Errorf("departure: %w", err)
	}
	arr, err := c.At(day, r.Arrival)
	if err != nil {
		return model.Trip{}, fmt.Errorf("arrival: %w", err)
	}
	if !day.IsZero() && arr.Before(dep) {
		arr = arr.AddDate(0, 0, 1)
	}
	var km float64
	if v := strings.TrimSpace(string(r.DistanceKM)); v != "" {
		if km, err = strconv.ParseFloat(v, 64); err != nil {
			return model.Trip{}, fmt.Errorf("distance_km: %w", err)
		}
	}
	var reserve bool
	if v := strings.TrimSpace(string(r.Reserve)); v != "" {
		if reserve, err = strconv.ParseBool(v); err != nil {
			return model.Trip{}, fmt.Errorf("reserve: %w", err)
		}
	}
	return model.Trip{
		ID: strings.TrimSpace(r.ID), VehicleType: strings.TrimSpace(r.VehicleType), Date: day,
		Origin: r.Origin, Destination: r.Destination, Departure: dep, Arrival: arr,
		DistanceKM: km, Service: r.Service, Reserve: reserve,
	}, nil
}

// LoadTrips reads trips from a JSON, YAML or CSV file. Records that cannot be
// parsed are returned as rejections; the caller still validates the trips.
func LoadTrips(path string, c Clock) ([]model.Trip, []model.Rejection, error) {
	var recs []TripRecord
	if Format(path) == "csv" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		defer func() { _ = f.Close() }()
		recs, err = ReadTripsCSV(f)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if err := decodeFile(path, &recs); err != nil {
		return nil, nil, err
	}
	trips, rejected := ConvertTrips(recs, c)
	return trips, rejected, nil
}

// ConvertTrips turns records into trips, rejecting unparseable ones.
func ConvertTrips(recs []TripRecord, c Clock) ([]model.Trip, []model.Rejection) {
	trips := make([]model.Trip, 0, len(recs))
	var rejected []model.Rejection
	for i, rec := range recs {
		t, err := rec.Trip(c)
		if err != nil {
			id := rec.ID
			if id == "" {
				id = "#" + strconv.Itoa(i+1)
			}
			rejected = append(rejected, model.Rejection{TripID: id, Reason: err.Error()})
			continue
		}
		trips = append(trips, t)
	}
	return trips, rejected
}

var tripColumns = []string{"id", "vehicle_type", "date", "origin", "destination", "departure", "arrival", "distance_km", "service", "reserve"}

// ReadTripsCSV reads trip records from CSV with a header row. Column order
// is free; service and reserve are optional. Rows that cannot be read are
// returned as records carrying the error.
func ReadTripsCSV(r io.Reader) ([]TripRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []error
	for _, col := range tripColumns[:8] {
		if _, ok := idx[col]; !ok {
			missing = append(missing, fmt.Errorf("missing column %q", col))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	var out []TripRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			out = append(out, TripRecord{err: err})
			continue
		}
		if err != nil {
			return nil, err
		}
		rec := TripRecord{
			ID: get(row, "id"), VehicleType: get(row, "vehicle_type"), Date: get(row, "date"),
			Origin: get(row, "origin"), Destination: get(row, "destination"),
			Departure: get(row, "departure"), Arrival: get(row, "arrival"), Service: get(row, "service"),
			DistanceKM: Scalar(get(row, "distance_km")), Reserve: Scalar(get(row, "reserve")),
		}
		if len(row) < len(header) {
			line, _ := cr.FieldPos(0)
			rec.err = fmt.Errorf("line %d: %d fields, header has %d", line, len(row), len(header))
		}
		out = append(out, rec)
	}
}
