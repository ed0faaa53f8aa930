package legalizer

// Status is the outcome of a cluster mutation attempt. The set is closed:
// every add or start operation reports exactly one of these. Statuses are
// expected control flow, not errors — callers recover by retrying
// elsewhere, escalating the strategy, or destroying the cluster.
type Status int

const (
	// StatusUndefined means the operation has not been attempted.
	StatusUndefined Status = iota
	// StatusPassed means the molecule was accepted.
	StatusPassed
	// StatusNoLegalMode means no mode of the block type can host the
	// seed molecule at all.
	StatusNoLegalMode
	// StatusCapacityExceeded means the cluster has no free leaf slot for
	// one of the molecule's atoms.
	StatusCapacityExceeded
	// StatusPinFeasibilityFailed means the cluster's external pin budget
	// would be exceeded.
	StatusPinFeasibilityFailed
	// StatusIntraRouteInfeasible means the cluster's internal routing
	// budget would be exceeded (full strategy only).
	StatusIntraRouteInfeasible
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusUndefined:
		return "UNDEFINED"
	case StatusPassed:
		return "PASSED"
	case StatusNoLegalMode:
		return "NO_LEGAL_MODE"
	case StatusCapacityExceeded:
		return "CAPACITY_EXCEEDED"
	case StatusPinFeasibilityFailed:
		return "PIN_FEASIBILITY_FAILED"
	case StatusIntraRouteInfeasible:
		return "INTRA_ROUTE_INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// Strategy selects the legality-checking tier. It is configuration of
// the legalizer as a whole, not of individual clusters.
type Strategy int

const (
	// StrategyFast checks necessary conditions only (leaf capacity and
	// pin feasibility). A cluster filled under this tier is
	// authoritative only after an explicit CheckClusterLegality call.
	StrategyFast Strategy = iota
	// StrategyFull additionally proves internal routability on every
	// mutation; clusters it accepts need no later re-check.
	StrategyFull
)

// String returns the strategy name.
func (s Strategy) String() string {
	if s == StrategyFull {
		return "full"
	}
	return "fast"
}
