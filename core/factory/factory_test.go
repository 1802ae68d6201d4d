package factory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weights struct {
	Deadhead float64 `json:"deadhead_weight"`
	Idle     float64 `json:"idle_weight"`
}

func weightRegistry(t *testing.T) *Registry[weights] {
	t.Helper()
	reg := NewRegistry[weights]()
	require.NoError(t, reg.Register("time", func(conf map[string]any) (weights, error) {
		w := weights{Deadhead: 1, Idle: 1}
		err := Decode(conf, &w)
		return w, err
	}))
	return reg
}

func TestRegistry_Create(t *testing.T) {
	reg := weightRegistry(t)
	w, err := reg.Create(ModuleConfig{Type: "time", Conf: map[string]any{"deadhead_weight": "2.5"}})
	require.NoError(t, err)
	assert.Equal(t, weights{Deadhead: 2.5, Idle: 1}, w)

	w, err = reg.Create(ModuleConfig{Type: "time"})
	require.NoError(t, err)
	assert.Equal(t, weights{Deadhead: 1, Idle: 1}, w)
}

func TestRegistry_Errors(t *testing.T) {
	reg := weightRegistry(t)
	assert.Error(t, reg.Register("time", func(map[string]any) (weights, error) { return weights{}, nil }))
	assert.Error(t, reg.Register("other", nil))
	assert.Error(t, reg.Register(" ", func(map[string]any) (weights, error) { return weights{}, nil }))

	_, err := reg.Create(ModuleConfig{Type: "profit"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))
	assert.Contains(t, err.Error(), "expected one of time")

	_, err = reg.Create(ModuleConfig{Type: "time", Conf: map[string]any{"deadhead_wieght": 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time:")
}

func TestRegistry_Names(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("split", func(map[string]any) (int, error) { return 0, nil }))
	require.NoError(t, reg.Register("gap", func(map[string]any) (int, error) { return 0, nil }))
	assert.Equal(t, []string{"gap", "split"}, reg.Names())
}

func TestDecodeWeaklyTyped(t *testing.T) {
	var c struct {
		Workers int           `json:"workers"`
		Window  time.Duration `json:"window"`
		Formats []string      `json:"formats"`
		Enabled bool          `json:"enabled"`
	}
	err := Decode(map[string]any{"workers": "4", "window": "30m", "formats": "json,csv", "enabled": "true"}, &c)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Workers != 4 || c.Window != 30*time.Minute || len(c.Formats) != 2 || !c.Enabled {
		t.Fatalf("unexpected decode %+v", c)
	}
}
