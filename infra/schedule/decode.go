// Package schedule loads the run inputs: trips, the travel table, refuel and
// charge stations, and reserve requirements.
package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format returns the input format of path from its extension.
func Format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// decode reads a JSON or YAML document from r into v.
func decode(r io.Reader, format string, v any) error {
	switch format {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(v); err != nil && err != io.EOF {
			return err
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}

func decodeFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := decode(f, Format(path), v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Clock parses times for a given time zone. Values are either RFC 3339
// timestamps or HH:MM clock times on the record's date.
type Clock struct {
	Location *time.Location
}

func (c Clock) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Date parses a YYYY-MM-DD date.
func (c Clock) Date(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), c.loc())
}

// At parses value relative to day. Clock times may exceed 24:00 to express
// the next day.
func (c Clock) At(day time.Time, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.In(c.loc()), nil
	}
	if day.IsZero() {
		return time.Time{}, fmt.Errorf("clock time %q needs a date", value)
	}
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil || h < 0 || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("invalid time %q", value)
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, c.loc()).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}
