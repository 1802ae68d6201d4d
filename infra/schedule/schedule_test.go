package schedule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadTripsYAML(t *testing.T) {
	p := writeFile(t, "trips.yaml", `
- id: t1
  vehicle_type: dubbeldekker
  date: "2024-03-05"
  origin: Utrecht
  destination: Zeist
  departure: "23:30"
  arrival: "00:20"
  distance_km: 14.5
  service: "74"
- id: t2
  vehicle_type: dubbeldekker
  date: "2024-03-05"
  origin: Zeist
  destination: Utrecht
  departure: "7h"
  arrival: "08:00"
`)
	trips, rejected, err := LoadTrips(p, Clock{})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, "t2", rejected[0].TripID)
	assert.Contains(t, rejected[0].Reason, "departure")

	tr := trips[0]
	assert.Equal(t, time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC), tr.Departure)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 20, 0, 0, time.UTC), tr.Arrival)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), tr.ServiceDay())
	assert.Equal(t, "74", tr.Service)
	assert.InDelta(t, 14.5, tr.DistanceKM, 1e-9)
}

func TestLoadTripsJSONWithTimestamps(t *testing.T) {
	p := writeFile(t, "trips.json", `[
	  {"id": "t1", "vehicle_type": "taxibus", "origin": "A", "destination": "B",
	   "departure": "2024-03-05T08:00:00+01:00", "arrival": "2024-03-05T09:00:00+01:00", "distance_km": 30}
	]`)
	ams, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	trips, rejected, err := LoadTrips(p, Clock{Location: ams})
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, trips, 1)
	assert.Equal(t, 8, trips[0].Departure.Hour())
	assert.Equal(t, ams, trips[0].Departure.Location())

	trips, rejected, err = LoadTrips(writeFile(t, "bad.json", `[{"id": "x", "colour": "red"}]`), Clock{})
	require.NoError(t, err)
	assert.Empty(t, trips)
	require.Len(t, rejected, 1)
	assert.Equal(t, "x", rejected[0].TripID)
	assert.Contains(t, rejected[0].Reason, "colour")

	_, _, err = LoadTrips(writeFile(t, "notalist.json", `{"id": "x"}`), Clock{})
	assert.Error(t, err)
}

func TestReadTripsCSV(t *testing.T) {
	recs, err := ReadTripsCSV(strings.NewReader(
		"ID,vehicle_type,date,origin,destination,departure,arrival,distance_km,reserve\n" +
			"t1,lagevloerbus,2024-03-05,A,B,08:00,08:45,21.5,false\n" +
			"t2,lagevloerbus,2024-03-05,B,A,09:00,09:45,,true\n"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, Scalar("21.5"), recs[0].DistanceKM)
	assert.Equal(t, "B", recs[1].Origin)

	trips, rejected := ConvertTrips(recs, Clock{})
	assert.Empty(t, rejected)
	require.Len(t, trips, 2)
	assert.InDelta(t, 21.5, trips[0].DistanceKM, 1e-9)
	assert.True(t, trips[1].Reserve)

	_, err = ReadTripsCSV(strings.NewReader("id,origin\n1,A\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "vehicle_type"`)
}

func TestLoadTripsRejectsBadRowsOnly(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"csv", "trips.csv",
			"id,vehicle_type,date,origin,destination,departure,arrival,distance_km,reserve\n" +
				"t1,midi bus,2024-03-05,A,B,08:00,08:45,12,false\n" +
				"t2,midi bus,2024-03-05,B,A,09:00,09:45,abc,false\n" +
				"t3,midi bus,2024-03-05,A,B,10:00,10:45,12,maybe\n" +
				"t4,midi bus,2024-03-05,B\n" +
				"t5,midi bus,2024-03-05,B,A,11:00,11:45,12,true\n"},
		{"yaml", "trips.yaml", `
- {id: t1, vehicle_type: midi bus, date: "2024-03-05", origin: A, destination: B, departure: "08:00", arrival: "08:45", distance_km: 12}
- {id: t2, vehicle_type: midi bus, date: "2024-03-05", origin: B, destination: A, departure: "09:00", arrival: "09:45", distance_km: abc}
- {id: t3, vehicle_type: midi bus, date: "2024-03-05", origin: A, destination: B, departure: "10:00", arrival: "10:45", reserve: maybe}
- {id: t4, vehicle_type: midi bus, date: "2024-03-05", origin: [B], destination: A, departure: "10:50", arrival: "10:55"}
- {id: t5, vehicle_type: midi bus, date: "2024-03-05", origin: B, destination: A, departure: "11:00", arrival: "11:45", distance_km: 12, reserve: true}
`},
		{"json", "trips.json", `[
  {"id": "t1", "vehicle_type": "midi bus", "date": "2024-03-05", "origin": "A", "destination": "B", "departure": "08:00", "arrival": "08:45", "distance_km": 12},
  {"id": "t2", "vehicle_type": "midi bus", "date": "2024-03-05", "origin": "B", "destination": "A", "departure": "09:00", "arrival": "09:45", "distance_km": "abc"},
  {"id": "t3", "vehicle_type": "midi bus", "date": "2024-03-05", "origin": "A", "destination": "B", "departure": "10:00", "arrival": "10:45", "reserve": "maybe"},
  {"id": "t4", "vehicle_type": "midi bus", "date": "2024-03-05", "origin": 7, "destination": "A", "departure": "10:50", "arrival": "10:55"},
  {"id": "t5", "vehicle_type": "midi bus", "date": "2024-03-05", "origin": "B", "destination": "A", "departure": "11:00", "arrival": "11:45", "distance_km": 12, "reserve": true}
]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trips, rejected, err := LoadTrips(writeFile(t, tt.file, tt.content), Clock{})
			require.NoError(t, err)
			require.Len(t, trips, 2)
			assert.Equal(t, "t1", trips[0].ID)
			assert.InDelta(t, 12, trips[0].DistanceKM, 1e-9)
			assert.Equal(t, "t5", trips[1].ID)
			assert.True(t, trips[1].Reserve)

			require.Len(t, rejected, 3)
			reasons := map[string]string{}
			for _, r := range rejected {
				reasons[r.TripID] = r.Reason
			}
			assert.Contains(t, reasons["t2"], "distance_km")
			assert.Contains(t, reasons["t3"], "reserve")
			assert.Contains(t, reasons, "t4")
		})
	}
}

func TestLoadTripsCSVFile(t *testing.T) {
	p := writeFile(t, "trips.csv",
		"id,vehicle_type,date,origin,destination,departure,arrival,distance_km\n"+
			"t1,touringcar,2024-03-05,A,B,25:10,26:00,80\n")
	trips, rejected, err := LoadTrips(p, Clock{})
	require.NoError(t, err)
	assert.Empty(t, rejected)
	require.Len(t, trips, 1)
	assert.Equal(t, time.Date(2024, 3, 6, 1, 10, 0, 0, time.UTC), trips[0].Departure)
}

func TestLoadTravelTable(t *testing.T) {
	p := writeFile(t, "table.yml", `
- {from: Utrecht, to: Zeist, minutes: 18, distance_km: 12, symmetric: true}
- {from: Zeist, to: Utrecht, minutes: 22, distance_km: 13}
- {from: A, to: B, minutes: -1}
`)
	m, err := LoadTravelTable(p)
	require.Error(t, err)
	leg, ok := m.Lookup("utrecht", "zeist")
	require.True(t, ok)
	assert.Equal(t, 18*time.Minute, leg.Duration)
	leg, ok = m.Lookup("Zeist", "Utrecht")
	require.True(t, ok)
	assert.Equal(t, 22*time.Minute, leg.Duration)
	_, ok = m.Lookup("A", "B")
	assert.False(t, ok)
}

func TestLoadStationsAndReserves(t *testing.T) {
	st, err := LoadStations(writeFile(t, "stations.json",
		`[{"name": "Tank Zeist", "location": "Zeist", "drive_minutes": 6, "distance_km": 3},
		  {"name": "Laadplein", "location": "Utrecht", "drive_minutes": 4, "distance_km": 2, "power_kw": 150}]`))
	require.NoError(t, err)
	require.Len(t, st, 2)
	assert.Equal(t, 6*time.Minute, st[0].DriveTime)
	assert.True(t, st[1].Charger())

	reqs, err := LoadReserves(writeFile(t, "reserves.yaml", `
- {station: Utrecht, date: "2024-03-05", start: "22:00", end: "01:00", count: 2}
- {station: "", date: "2024-03-05", start: "08:00", end: "09:00", count: 1}
`), Clock{})
	require.Error(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, time.Date(2024, 3, 6, 1, 0, 0, 0, time.UTC), reqs[0].End)
	assert.Equal(t, 2, reqs[0].Count)
}

func TestClock(t *testing.T) {
	c := Clock{}
	_, err := c.At(time.Time{}, "08:00")
	assert.Error(t, err)
	_, err = c.At(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "08:75")
	assert.Error(t, err)
	assert.Equal(t, "yaml", Format("/x/Trips.YAML"))
}
