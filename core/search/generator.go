package search

import (
	"fmt"
	"sort"

	"github.com/kilianp07/rotaplan/core/factory"
	"github.com/kilianp07/rotaplan/core/finance"
	"github.com/kilianp07/rotaplan/core/model"
)

// Proposal is a candidate configuration produced by a generator.
type Proposal struct {
	Origin    string
	Rotations []model.Rotation
}

// CandidateGenerator proposes configurations derived from base that use at
// most budget additional vehicles. Proposals must be returned in a
// deterministic order.
type CandidateGenerator interface {
	Name() string
	Generate(base []model.Rotation, budget int) []Proposal
}

// Options carries the run-level dependencies a generator may need.
type Options struct {
	Finance *finance.Model
}

// Constructor builds a generator once run-level dependencies are known.
type Constructor func(Options) (CandidateGenerator, error)

var registry = factory.NewRegistry[Constructor]()

// Register adds a candidate generator under name.
func Register(name string, f factory.Factory[Constructor]) error {
	return registry.Register(name, f)
}

// NewGenerator creates the generator described by cfg, "split" by default.
func NewGenerator(cfg factory.ModuleConfig, opts Options) (CandidateGenerator, error) {
	if cfg.Type == "" {
		cfg.Type = "split"
	}
	ctor, err := registry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("candidate generator: %w", err)
	}
	return ctor(opts)
}

// Generators lists the registered generators.
func Generators() []string { return registry.Names() }

func init() {
	_ = Register("split", func(conf map[string]any) (Constructor, error) {
		var c struct {
			MaxProposals int `json:"max_proposals"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return func(o Options) (CandidateGenerator, error) {
			if o.Finance == nil {
				return nil, fmt.Errorf("split generator requires a financial model")
			}
			return &SplitGenerator{Finance: o.Finance, MaxProposals: c.MaxProposals}, nil
		}, nil
	})
	_ = Register("gap", func(map[string]any) (Constructor, error) {
		return func(Options) (CandidateGenerator, error) { return GapGenerator{}, nil }, nil
	})
}

// SplitGenerator proposes every split point of every rotation, most
// expensive rotations first.
type SplitGenerator struct {
	Finance *finance.Model
	// MaxProposals caps the proposals per call. Zero means no cap.
	MaxProposals int
}

// Name implements CandidateGenerator.
func (g *SplitGenerator) Name() string { return "split" }

// Generate implements CandidateGenerator.
func (g *SplitGenerator) Generate(base []model.Rotation, budget int) []Proposal {
	if budget < 1 {
		return nil
	}
	type ranked struct {
		idx   int
		labor float64
	}
	order := make([]ranked, 0, len(base))
	for i, r := range base {
		if len(r.Trips) < 2 {
			continue
		}
		order = append(order, ranked{idx: i, labor: g.Finance.LaborCost(r)})
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].labor != order[j].labor {
			return order[i].labor > order[j].labor
		}
		return base[order[i].idx].ID < base[order[j].idx].ID
	})

	var out []Proposal
	for _, o := range order {
		r := base[o.idx]
		for k := 0; k < len(r.Trips)-1; k++ {
			if g.MaxProposals > 0 && len(out) >= g.MaxProposals {
				return out
			}
			p, err := splitAt(base, o.idx, k)
			if err != nil {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

// GapGenerator proposes one split per rotation, at its longest idle link.
type GapGenerator struct{}

// Name implements CandidateGenerator.
func (GapGenerator) Name() string { return "gap" }

// Generate implements CandidateGenerator.
func (GapGenerator) Generate(base []model.Rotation, budget int) []Proposal {
	if budget < 1 {
		return nil
	}
	var out []Proposal
	for i, r := range base {
		if len(r.Links) == 0 {
			continue
		}
		k := 0
		for j, l := range r.Links {
			if l.Idle > r.Links[k].Idle {
				k = j
			}
		}
		if p, err := splitAt(base, i, k); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// splitAt replaces rotation idx of base with its two halves cut after trip k.
func splitAt(base []model.Rotation, idx, k int) (Proposal, error) {
	r := base[idx]
	left, right, err := r.Split(k)
	if err != nil {
		return Proposal{}, err
	}
	rs := make([]model.Rotation, 0, len(base)+1)
	rs = append(rs, base[:idx]...)
	rs = append(rs, left, right)
	rs = append(rs, base[idx+1:]...)
	return Proposal{
		Origin:    fmt.Sprintf("split %s after %s", r.ID, r.Trips[k].ID),
		Rotations: rs,
	}, nil
}
