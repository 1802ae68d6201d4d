package model

import (
	"errors"
	"testing"
	"time"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestTripValidate(t *testing.T) {
	ok := Trip{ID: "t1", VehicleType: "DD", Origin: "A", Destination: "B", Departure: at(4, 8, 0), Arrival: at(4, 9, 0), DistanceKM: 30}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cases := []struct {
		name string
		mod  func(*Trip)
	}{
		{"missing id", func(tr *Trip) { tr.ID = "" }},
		{"missing type", func(tr *Trip) { tr.VehicleType = " " }},
		{"missing origin", func(tr *Trip) { tr.Origin = "" }},
		{"zero duration", func(tr *Trip) { tr.Arrival = tr.Departure }},
		{"negative distance", func(tr *Trip) { tr.DistanceKM = -1 }},
		{"missing times", func(tr *Trip) { tr.Departure = time.Time{} }},
	}
	for _, c := range cases {
		tr := ok
		c.mod(&tr)
		err := tr.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if !errors.Is(err, ErrInvalidTrip) {
			t.Fatalf("%s: expected ErrInvalidTrip, got %v", c.name, err)
		}
	}
}

func TestFilterValid(t *testing.T) {
	trips := []Trip{
		{ID: "a", VehicleType: "DD", Origin: "A", Destination: "B", Departure: at(4, 8, 0), Arrival: at(4, 9, 0)},
		{ID: "b", VehicleType: "DD", Origin: "A", Destination: "B", Departure: at(4, 9, 0), Arrival: at(4, 8, 0)},
		{ID: "a", VehicleType: "DD", Origin: "A", Destination: "B", Departure: at(4, 10, 0), Arrival: at(4, 11, 0)},
	}
	valid, rejected := FilterValid(trips)
	if len(valid) != 1 || valid[0].ID != "a" {
		t.Fatalf("unexpected valid set %+v", valid)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejections got %d", len(rejected))
	}
	if rejected[1].Reason != "duplicate trip id" {
		t.Fatalf("unexpected reason %q", rejected[1].Reason)
	}
}

func TestDaysBetweenAndServiceDay(t *testing.T) {
	tr := Trip{Departure: at(4, 23, 30)}
	if !tr.ServiceDay().Equal(at(4, 0, 0)) {
		t.Fatalf("service day %v", tr.ServiceDay())
	}
	tr.Date = at(3, 0, 0)
	if !tr.ServiceDay().Equal(at(3, 0, 0)) {
		t.Fatalf("explicit date ignored")
	}
	if d := DaysBetween(at(3, 23, 0), at(5, 1, 0)); d != 2 {
		t.Fatalf("expected 2 got %d", d)
	}
}

func TestSortTrips(t *testing.T) {
	trips := []Trip{
		{ID: "c", Departure: at(4, 9, 0), Arrival: at(4, 10, 0)},
		{ID: "b", Departure: at(4, 8, 0), Arrival: at(4, 9, 0)},
		{ID: "a", Departure: at(4, 8, 0), Arrival: at(4, 9, 0)},
	}
	SortTrips(trips)
	if trips[0].ID != "a" || trips[1].ID != "b" || trips[2].ID != "c" {
		t.Fatalf("unexpected order %s %s %s", trips[0].ID, trips[1].ID, trips[2].ID)
	}
}
