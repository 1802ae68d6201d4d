// Package search trades extra vehicles against operating cost. Starting from
// the minimum-vehicle configuration it climbs greedily through split
// proposals, scoring every candidate with the financial model on a bounded
// worker pool.
package search

import (
	"context"
	"errors"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rotaplan/core/events"
	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/logger"
	"github.com/kilianp07/rotaplan/core/model"
	"github.com/kilianp07/rotaplan/core/rangetrack"
	"github.com/kilianp07/rotaplan/internal/eventbus"
)

const profitEps = 1e-6

// BaselineOrigin labels the minimum-vehicle configuration.
const BaselineOrigin = "baseline"

// Annotator runs the fuel post-pass on a candidate before it is priced.
type Annotator interface {
	Annotate(rs []model.Rotation, advisor rangetrack.FuelAdvisor) rangetrack.ZEResult
}

// Config bounds the search.
type Config struct {
	// MaxExtraPct is the extra-vehicle budget in percent of the baseline count.
	MaxExtraPct float64 `json:"max_extra_pct"`
	// MaxRounds limits the hill climb. Each round adds at most one vehicle.
	MaxRounds int `json:"max_rounds"`
	Workers   int `json:"workers"`
}

// SetDefaults applies fallback values.
func (c *Config) SetDefaults() {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 20
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxExtraPct < 0 {
		return errors.New("max_extra_pct must not be negative")
	}
	return nil
}

// Budget is the number of extra vehicles allowed above base.
func (c Config) Budget(base int) int {
	return int(math.Floor(float64(base) * c.MaxExtraPct / 100))
}

// Scored is a priced configuration.
type Scored struct {
	Seq       int                 `json:"seq"`
	Round     int                 `json:"round"`
	Origin    string              `json:"origin"`
	Rotations []model.Rotation    `json:"-"`
	Breakdown finance.Breakdown   `json:"breakdown"`
	ZE        rangetrack.ZEResult `json:"ze"`
}

// Vehicles is the number of rotations of the configuration.
func (s Scored) Vehicles() int { return len(s.Rotations) }

// Result is the outcome of a search.
type Result struct {
	Best     Scored `json:"best"`
	Baseline Scored `json:"baseline"`
	Budget   int    `json:"budget"`
	Rounds   int    `json:"rounds"`
	Scored   int    `json:"scored"`
	// ProfitMean and ProfitStdDev describe every scored candidate.
	ProfitMean   float64       `json:"profit_mean"`
	ProfitStdDev float64       `json:"profit_std_dev"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Improvement is the profit gained over the baseline.
func (r Result) Improvement() float64 { return r.Best.Breakdown.Profit - r.Baseline.Breakdown.Profit }

// Searcher runs the profit search. It holds no per-run state.
type Searcher struct {
	cfg   Config
	gen   CandidateGenerator
	fin   *finance.Model
	notes Annotator
	log   logger.Logger
	bus   eventbus.EventBus
}

// New builds a searcher. notes may be nil when no fuel post-pass applies;
// bus may be nil.
func New(cfg Config, gen CandidateGenerator, fin *finance.Model, notes Annotator, bus eventbus.EventBus, log logger.Logger) (*Searcher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil || fin == nil {
		return nil, errors.New("search requires a generator and a financial model")
	}
	return &Searcher{cfg: cfg, gen: gen, fin: fin, notes: notes, log: logger.OrNop(log), bus: bus}, nil
}

// Score prices one configuration after running the fuel post-pass on a copy.
func (s *Searcher) Score(seq, round int, origin string, rs []model.Rotation) Scored {
	rs = model.CloneAll(rs)
	model.AssignIDs(rs)
	sc := Scored{Seq: seq, Round: round, Origin: origin, Rotations: rs}
	if s.notes != nil {
		sc.ZE = s.notes.Annotate(rs, s.fin)
	} else {
		sc.ZE.Met = true
	}
	sc.Breakdown = s.fin.Profit(rs)
	return sc
}

// better reports whether a beats b: higher profit, then fewer vehicles, then
// earlier discovery.
func better(a, b Scored) bool {
	if d := a.Breakdown.Profit - b.Breakdown.Profit; math.Abs(d) > profitEps {
		return d > 0
	}
	if a.Vehicles() != b.Vehicles() {
		return a.Vehicles() < b.Vehicles()
	}
	return a.Seq < b.Seq
}

// Run searches from baseline. The baseline is always a candidate, so the
// returned profit is never below it.
func (s *Searcher) Run(ctx context.Context, baseline []model.Rotation) (Result, error) {
	start := time.Now()
	res := Result{Budget: s.cfg.Budget(len(baseline))}
	res.Baseline = s.Score(0, 0, BaselineOrigin, baseline)
	res.Best = res.Baseline
	res.Scored = 1
	s.publish(res.Baseline)
	profits := []float64{res.Baseline.Breakdown.Profit}

	seq := 1
	for round := 1; round <= s.cfg.MaxRounds; round++ {
		extra := res.Best.Vehicles() - res.Baseline.Vehicles()
		if extra >= res.Budget {
			break
		}
		props := s.gen.Generate(res.Best.Rotations, res.Budget-extra)
		if len(props) == 0 {
			break
		}
		scored := make([]Scored, len(props))
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(s.cfg.Workers)
		for i, p := range props {
			eg.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scored[i] = s.Score(seq+i, round, p.Origin, p.Rotations)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return Result{}, err
		}
		seq += len(props)
		res.Rounds = round
		res.Scored += len(scored)

		roundBest := scored[0]
		for _, sc := range scored {
			s.publish(sc)
			profits = append(profits, sc.Breakdown.Profit)
			if better(sc, roundBest) {
				roundBest = sc
			}
		}
		s.log.Debugw("search round", map[string]any{
			"round": round, "candidates": len(scored), "best_profit": roundBest.Breakdown.Profit,
			"best_vehicles": roundBest.Vehicles(),
		})
		if !better(roundBest, res.Best) {
			break
		}
		res.Best = roundBest
	}

	res.ProfitMean, res.ProfitStdDev = stat.MeanStdDev(profits, nil)
	if math.IsNaN(res.ProfitStdDev) {
		res.ProfitStdDev = 0
	}
	res.Elapsed = time.Since(start)
	s.log.Infof("profit search: %d candidates in %d rounds, best %.2f at %d vehicles (baseline %.2f at %d)",
		res.Scored, res.Rounds, res.Best.Breakdown.Profit, res.Best.Vehicles(),
		res.Baseline.Breakdown.Profit, res.Baseline.Vehicles())
	return res, nil
}

func (s *Searcher) publish(sc Scored) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.CandidateEvent{
		Round: sc.Round, Seq: sc.Seq, Origin: sc.Origin,
		Vehicles: sc.Vehicles(), Profit: sc.Breakdown.Profit,
	})
}
