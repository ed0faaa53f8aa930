package pack

import (
	"github.com/charmbracelet/log"

	"github.com/selimozt/fabpack/pkg/arch"
	"github.com/selimozt/fabpack/pkg/device"
	"github.com/selimozt/fabpack/pkg/errors"
	"github.com/selimozt/fabpack/pkg/legalizer"
	"github.com/selimozt/fabpack/pkg/netlist"
	"github.com/selimozt/fabpack/pkg/place"
	"github.com/selimozt/fabpack/pkg/prepack"
)

// Config tunes the greedy clusterer.
type Config struct {
	// HighFanoutThreshold excludes wide nets from connectivity gain.
	// Zero means DefaultHighFanoutThreshold.
	HighFanoutThreshold int

	// AttractionGroups optionally assigns molecules to groups whose
	// members prefer to cluster together.
	AttractionGroups map[prepack.MoleculeID]int

	// Oracle enables timing-driven seed priority when non-nil.
	Oracle CriticalityOracle

	// Hint biases candidate selection toward molecules whose upstream
	// continuous position is near the cluster's. Grid must be set
	// alongside it.
	Hint *place.Partial
	Grid *device.Grid

	// HillClimbing enables the secondary fill pass that tops up
	// partially filled clusters with unrelated molecules.
	HillClimbing bool

	// Logger receives progress output. Nil means the default logger.
	Logger *log.Logger
}

// Stats summarizes a finished clustering run.
type Stats struct {
	NumClusters int
	// UsageByType counts clusters per block type name.
	UsageByType map[string]int
	// LogicElements counts clustered atoms per primitive model name.
	LogicElements map[string]int
}

// GreedyClusterer grows clusters seed by seed. Each seed is tried with
// the fast checking tier first and re-tried from scratch with the full
// tier when the fast-built cluster fails its final legality proof. A
// seed that fails under both tiers aborts the run: the input cannot be
// clustered by this algorithm and a partial answer would be wrong.
type GreedyClusterer struct {
	nl  *netlist.Netlist
	pp  *prepack.Prepacker
	ar  *arch.Architecture
	leg *legalizer.ClusterLegalizer
	cfg Config
	log *log.Logger
}

// NewGreedyClusterer creates a clusterer over a shared legalizer.
func NewGreedyClusterer(nl *netlist.Netlist, pp *prepack.Prepacker, ar *arch.Architecture, leg *legalizer.ClusterLegalizer, cfg Config) *GreedyClusterer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &GreedyClusterer{nl: nl, pp: pp, ar: ar, leg: leg, cfg: cfg, log: logger}
}

// attractionRepetitionBound replaces the single-rejection bound while
// attraction groups are active, since group members often fail a few
// times before one fits.
const attractionRepetitionBound = 8

// Run clusters every molecule. On success all molecules belong to
// cleaned clusters; on failure no usable partition exists and the
// legalizer state is not meaningful.
func (g *GreedyClusterer) Run() (Stats, error) {
	seeds := NewSeedSelector(g.pp, g.cfg.Oracle, func(m prepack.MoleculeID) bool {
		return g.leg.MoleculeCluster(m).IsValid()
	})
	cand := newCandidateSelector(g.nl, g.pp, g.leg, g.cfg.HighFanoutThreshold)
	cand.attraction = g.cfg.AttractionGroups
	if g.cfg.Hint != nil {
		cand.hint = g.cfg.Hint
		cand.grid = g.cfg.Grid
	}

	for {
		seed := seeds.Next()
		if !seed.IsValid() {
			break
		}
		id, err := g.clusterSeed(seed, cand)
		if err != nil {
			return Stats{}, err
		}
		g.log.Debug("finalized cluster",
			"cluster", id,
			"molecules", len(g.leg.ClusterMolecules(id)),
			"type", g.leg.ClusterType(id).Name)
	}
	return g.stats(), nil
}

// clusterSeed builds one cluster around a seed, escalating from the
// fast to the full tier when needed. The returned cluster is cleaned.
func (g *GreedyClusterer) clusterSeed(seed prepack.MoleculeID, cand *candidateSelector) (legalizer.ClusterID, error) {
	for _, strategy := range []legalizer.Strategy{legalizer.StrategyFast, legalizer.StrategyFull} {
		g.leg.SetStrategy(strategy)
		id, ok := g.grow(seed, cand)
		if !ok {
			continue
		}
		if strategy == legalizer.StrategyFull || g.leg.CheckClusterLegality(id) {
			g.leg.CleanCluster(id)
			return id, nil
		}
		// The fast tier over-committed; dissolve and redo this seed
		// with every addition fully checked.
		g.log.Debug("fast-built cluster failed full check, retrying seed", "seed", seed)
		g.leg.DestroyCluster(id)
	}
	return legalizer.InvalidCluster, errors.New(errors.ErrCodeSeedUnclusterable,
		"molecule %d (%s) cannot be legally clustered under any strategy", seed, g.pp.RootModel(seed))
}

// grow founds a cluster on the seed and absorbs candidates until no
// acceptable one remains or the rejection bound trips.
func (g *GreedyClusterer) grow(seed prepack.MoleculeID, cand *candidateSelector) (legalizer.ClusterID, bool) {
	id := legalizer.InvalidCluster
	for _, bt := range g.ar.CandidateBlockTypes(g.pp.RootModel(seed)) {
		var st legalizer.Status
		id, st = g.leg.StartNewCluster(seed, bt, legalizer.AnyMode)
		if st == legalizer.StatusPassed {
			break
		}
		id = legalizer.InvalidCluster
	}
	if !id.IsValid() {
		return id, false
	}

	cand.reset(seed)
	if cand.hint != nil {
		cand.desiredTile = cand.hint.CentroidTile(cand.grid, g.pp.Molecule(seed).Atoms)
	}

	bound := 1
	if len(g.cfg.AttractionGroups) > 0 {
		bound = attractionRepetitionBound
	}
	rejects := 0
	for rejects < bound {
		mol := cand.next(id)
		if !mol.IsValid() {
			break
		}
		if g.leg.AddMolToCluster(mol, id) == legalizer.StatusPassed {
			cand.absorb(mol)
			rejects = 0
		} else {
			cand.reject(mol)
			rejects++
		}
	}

	if g.cfg.HillClimbing {
		g.hillClimb(id)
	}
	return id, true
}

// hillClimb tops up a cluster with unrelated unclustered molecules in
// creation order, bounded by a budget that shrinks as clusters grow.
// A cluster already at the architecture's largest leaf count cannot
// absorb anything, so the sweep is skipped outright.
func (g *GreedyClusterer) hillClimb(id legalizer.ClusterID) {
	size := len(g.leg.ClusterAtoms(id))
	if size >= g.ar.MaxClusterSize() {
		return
	}
	budget := hillClimbBudget(size)
	for _, mol := range g.leg.UnclusteredMolecules() {
		if budget == 0 {
			return
		}
		if !g.leg.IsMoleculeCompatible(mol, id) {
			continue
		}
		if g.leg.AddMolToCluster(mol, id) != legalizer.StatusPassed {
			budget--
		}
	}
}

// hillClimbBudget is the per-cluster-size table of tolerated failed
// fill attempts: nearly empty clusters are worth more effort.
func hillClimbBudget(size int) int {
	switch {
	case size <= 4:
		return 8
	case size <= 16:
		return 4
	case size <= 64:
		return 2
	default:
		return 1
	}
}

func (g *GreedyClusterer) stats() Stats {
	st := Stats{
		UsageByType:   make(map[string]int),
		LogicElements: make(map[string]int),
	}
	for _, id := range g.leg.Clusters() {
		st.NumClusters++
		st.UsageByType[g.leg.ClusterType(id).Name]++
		for _, a := range g.leg.ClusterAtoms(id) {
			st.LogicElements[g.nl.Atom(a).Model]++
		}
	}
	return st
}
