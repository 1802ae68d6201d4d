package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rotaplan/core/cost"
)

func TestCertifyMatchesLP(t *testing.T) {
	e := New(baseModel(), cost.TimeBased{}, nil, Options{}, nil)
	certs, err := e.Certify(context.Background(), costInstance(), 0)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	c := certs[0]
	assert.Equal(t, 2, c.Pairs)
	assert.InDelta(t, 110, c.MatchingCost, 1e-9)
	assert.InDelta(t, 110, c.LPCost, 1e-6)
	assert.InDelta(t, 0, c.Gap(), 1e-6)
}

func TestCertifyRandomGroups(t *testing.T) {
	e := New(baseModel(), cost.TimeBased{}, nil, Options{}, nil)
	certs, err := e.Certify(context.Background(), randomTrips(5, 24, "DD"), 0)
	require.NoError(t, err)
	for _, c := range certs {
		if c.Pairs == 0 {
			continue
		}
		if c.Gap() > 1e-6 || c.Gap() < -1e-6 {
			t.Fatalf("group %s: matching cost %.4f differs from lp bound %.4f", c.Group, c.MatchingCost, c.LPCost)
		}
	}
}

func TestCertifySkipsLargeGroups(t *testing.T) {
	e := New(baseModel(), cost.TimeBased{}, nil, Options{}, nil)
	certs, err := e.Certify(context.Background(), costInstance(), 3)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.True(t, certs[0].Skipped)
}

func TestCertifyRejectsStateDependentCost(t *testing.T) {
	e := New(baseModel(), chainLength{}, nil, Options{}, nil)
	_, err := e.Certify(context.Background(), costInstance(), 0)
	assert.ErrorIs(t, err, ErrStateDependent)
}

func TestCertifySolverFailure(t *testing.T) {
	orig := lpSolve
	lpSolve = func([]float64, []int, []int, int, int) ([]float64, error) {
		return nil, errors.New("boom")
	}
	defer func() { lpSolve = orig }()

	e := New(baseModel(), cost.TimeBased{}, nil, Options{}, nil)
	_, err := e.Certify(context.Background(), costInstance(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
