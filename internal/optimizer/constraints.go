package optimizer

import (
	"fmt"
	"sort"
)

// Comparison is the relation a linear constraint imposes on its row.
type Comparison int

const (
	CompareEQ Comparison = iota
	CompareLE
	CompareGE
)

func (c Comparison) String() string {
	switch c {
	case CompareEQ:
		return "=="
	case CompareLE:
		return "<="
	case CompareGE:
		return ">="
	}
	return "?"
}

// LinearConstraint is one row of the model: Coeffs · x  (Compare)  RHS.
// Coeffs is dense over the catalog's variable indices.
type LinearConstraint struct {
	Label   string
	Coeffs  []float64
	Compare Comparison
	RHS     float64
}

// ConstraintSystem is a fully assembled 0/1 program: maximize Objective · x
// subject to Constraints, x binary.
type ConstraintSystem struct {
	NumVars     int
	RosterSize  int
	Objective   []float64
	Constraints []LinearConstraint
}

// BuildInput carries everything one lineup's model depends on. ExposureBanned
// lists players the orchestrator has capped out; the builder turns them into
// exclusion rows unless a lock overrides.
type BuildInput struct {
	SalaryCapMin   int
	SalaryCapMax   int
	RosterSize     int
	ValueWeight    float64
	Locked         []string
	Excluded       []string
	ExposureBanned []string
}

// BuildConstraints assembles the lineup model in a fixed group order:
// cardinality, salary floor, salary ceiling, slot coverage, locks,
// exclusions, exposure caps. Identical inputs always produce an identical
// system, so repeated solves are reproducible.
func BuildConstraints(catalog *Catalog, slots []SlotRule, in BuildInput) (*ConstraintSystem, error) {
	players := catalog.Players()
	n := len(players)

	sys := &ConstraintSystem{
		NumVars:    n,
		RosterSize: in.RosterSize,
		Objective:  make([]float64, n),
	}
	for i, p := range players {
		sys.Objective[i] = p.Projection + in.ValueWeight*p.Value()
	}

	// Group 1: roster cardinality.
	card := make([]float64, n)
	for i := range card {
		card[i] = 1
	}
	sys.Constraints = append(sys.Constraints, LinearConstraint{
		Label:   "cardinality",
		Coeffs:  card,
		Compare: CompareEQ,
		RHS:     float64(in.RosterSize),
	})

	// Groups 2 and 3: salary window. The floor row is omitted when zero,
	// the group is simply empty.
	salaries := make([]float64, n)
	for i, p := range players {
		salaries[i] = float64(p.Salary)
	}
	if in.SalaryCapMin > 0 {
		sys.Constraints = append(sys.Constraints, LinearConstraint{
			Label:   "salary_min",
			Coeffs:  salaries,
			Compare: CompareGE,
			RHS:     float64(in.SalaryCapMin),
		})
	}
	sys.Constraints = append(sys.Constraints, LinearConstraint{
		Label:   "salary_max",
		Coeffs:  salaries,
		Compare: CompareLE,
		RHS:     float64(in.SalaryCapMax),
	})

	// Group 4: slot coverage, template order. A slot whose eligible pool is
	// shared with another slot gets a floor, the cardinality row caps the
	// total. Only a pool no other slot can draw from is pinned exactly,
	// otherwise multi-slot players would make exact rows contradict the
	// roster size.
	pools := make([][]bool, len(slots))
	for si, slot := range slots {
		pool := make([]bool, n)
		for i, p := range players {
			if slot.Accepts(p) {
				pool[i] = true
			}
		}
		pools[si] = pool
	}
	for si, slot := range slots {
		coeffs := make([]float64, n)
		for i := range players {
			if pools[si][i] {
				coeffs[i] = 1
			}
		}
		cmp := CompareEQ
		if poolOverlaps(pools, si) {
			cmp = CompareGE
		}
		sys.Constraints = append(sys.Constraints, LinearConstraint{
			Label:   "slot_" + slot.Name,
			Coeffs:  coeffs,
			Compare: cmp,
			RHS:     float64(slot.Count),
		})
	}

	// Group 5: locks, sorted so rebuilds emit rows in the same order.
	locked := dedupeSorted(in.Locked)
	excluded := dedupeSorted(in.Excluded)
	lockedSet := make(map[string]bool, len(locked))
	for _, name := range locked {
		if catalog.IndexOf(name) < 0 {
			return nil, NewConfigurationError(name, "locked player not in pool")
		}
		lockedSet[name] = true
	}
	for _, name := range excluded {
		if lockedSet[name] {
			return nil, NewConfigurationError(name, "player is both locked and excluded")
		}
	}
	for _, name := range locked {
		sys.Constraints = append(sys.Constraints, unitRow(fmt.Sprintf("lock(%s)", name), catalog.IndexOf(name), n, 1))
	}

	// Group 6: exclusions. Names missing from the pool are already gone,
	// skip them rather than fail the batch.
	excludedSet := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		idx := catalog.IndexOf(name)
		if idx < 0 {
			continue
		}
		excludedSet[name] = true
		sys.Constraints = append(sys.Constraints, unitRow(fmt.Sprintf("exclude(%s)", name), idx, n, 0))
	}

	// Group 7: exposure caps in catalog order. Locked players stay in, and
	// players already excluded do not get a second zero row.
	banned := make(map[string]bool, len(in.ExposureBanned))
	for _, name := range in.ExposureBanned {
		banned[name] = true
	}
	for i, p := range players {
		if !banned[p.Name] || lockedSet[p.Name] || excludedSet[p.Name] {
			continue
		}
		sys.Constraints = append(sys.Constraints, unitRow(fmt.Sprintf("exposure(%s)", p.Name), i, n, 0))
	}

	return sys, nil
}

// poolOverlaps reports whether slot si shares any eligible player with
// another slot.
func poolOverlaps(pools [][]bool, si int) bool {
	for sj := range pools {
		if sj == si {
			continue
		}
		for i := range pools[si] {
			if pools[si][i] && pools[sj][i] {
				return true
			}
		}
	}
	return false
}

func unitRow(label string, idx, n int, rhs float64) LinearConstraint {
	coeffs := make([]float64, n)
	coeffs[idx] = 1
	return LinearConstraint{Label: label, Coeffs: coeffs, Compare: CompareEQ, RHS: rhs}
}

func dedupeSorted(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
