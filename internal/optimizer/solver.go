package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/hoopcap/dfs-optimizer/pkg/logger"
)

const (
	defaultMaxNodes = 25000

	// integralityTol decides when a relaxation value counts as 0 or 1.
	integralityTol = 1e-6
	// boundTol guards pruning against simplex round-off.
	boundTol = 1e-9
	// simplexTol is the pivot tolerance handed to the LP solver.
	simplexTol = 1e-10
)

// Solution is a proven-optimal integer assignment: the selected variable
// indices and the objective they achieve.
type Solution struct {
	Selected  []int
	Objective float64
	Nodes     int
}

// Solver turns a ConstraintSystem into an optimal 0/1 assignment with
// branch and bound over the LP relaxation. A Solver is stateless across
// calls and safe to reuse.
type Solver struct {
	log      *logrus.Entry
	maxNodes int
}

// NewSolver returns a solver with the default node budget.
func NewSolver() *Solver {
	return NewSolverWithBudget(defaultMaxNodes)
}

// NewSolverWithBudget returns a solver that explores at most maxNodes
// branch-and-bound nodes before giving up with a SolverError.
func NewSolverWithBudget(maxNodes int) *Solver {
	if maxNodes <= 0 {
		maxNodes = defaultMaxNodes
	}
	return &Solver{
		log:      logger.GetLogger().WithField("component", "solver"),
		maxNodes: maxNodes,
	}
}

type branchFix struct {
	idx int
	val float64
}

type bbNode struct {
	fixed []branchFix
}

// Solve maximizes sys.Objective over binary assignments satisfying
// sys.Constraints. It returns InfeasibleError when no assignment exists
// and SolverError when the search cannot complete. Branching is
// deterministic, so equal inputs always return the same lineup.
func (s *Solver) Solve(ctx context.Context, sys *ConstraintSystem) (*Solution, error) {
	if sys.NumVars == 0 {
		return nil, &InfeasibleError{}
	}

	var best *Solution
	stack := []bbNode{{}}
	nodes := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes++
		if nodes > s.maxNodes {
			return nil, &SolverError{Err: fmt.Errorf("node budget exhausted after %d nodes", s.maxNodes)}
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bound, x, err := s.relax(sys, node.fixed)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) {
				continue
			}
			return nil, &SolverError{Err: err}
		}
		if best != nil && bound <= best.Objective+boundTol {
			continue
		}

		branch := mostFractional(x, sys.NumVars)
		if branch < 0 {
			selected, objective := roundSolution(sys, x)
			if best == nil || objective > best.Objective {
				best = &Solution{Selected: selected, Objective: objective}
			}
			continue
		}

		// Explore the x=1 child first so promising rosters surface early
		// and tighten the bound.
		zero := bbNode{fixed: appendFix(node.fixed, branchFix{idx: branch, val: 0})}
		one := bbNode{fixed: appendFix(node.fixed, branchFix{idx: branch, val: 1})}
		stack = append(stack, zero, one)
	}

	if best == nil {
		return nil, &InfeasibleError{}
	}
	best.Nodes = nodes
	s.log.WithFields(logrus.Fields{
		"nodes":     nodes,
		"objective": best.Objective,
		"selected":  len(best.Selected),
	}).Debug("Branch and bound complete")
	return best, nil
}

// relax solves the LP relaxation of sys with the given variables pinned,
// returning the maximization bound and the relaxed assignment.
func (s *Solver) relax(sys *ConstraintSystem, fixed []branchFix) (float64, []float64, error) {
	n := sys.NumVars

	var gRows [][]float64
	var h []float64
	var aRows [][]float64
	var b []float64

	for _, c := range sys.Constraints {
		if isZeroRow(c.Coeffs) {
			satisfied := (c.Compare == CompareEQ && c.RHS == 0) ||
				(c.Compare == CompareLE && c.RHS >= 0) ||
				(c.Compare == CompareGE && c.RHS <= 0)
			if satisfied {
				continue
			}
			return 0, nil, lp.ErrInfeasible
		}
		switch c.Compare {
		case CompareEQ:
			aRows = append(aRows, c.Coeffs)
			b = append(b, c.RHS)
		case CompareLE:
			gRows = append(gRows, c.Coeffs)
			h = append(h, c.RHS)
		case CompareGE:
			gRows = append(gRows, negate(c.Coeffs))
			h = append(h, -c.RHS)
		}
	}

	// Box every variable into [0, 1]. Convert treats x as free otherwise.
	for i := 0; i < n; i++ {
		upper := make([]float64, n)
		upper[i] = 1
		gRows = append(gRows, upper)
		h = append(h, 1)

		lower := make([]float64, n)
		lower[i] = -1
		gRows = append(gRows, lower)
		h = append(h, 0)
	}

	for _, f := range fixed {
		row := make([]float64, n)
		row[f.idx] = 1
		aRows = append(aRows, row)
		b = append(b, f.val)
	}

	// The simplex needs full row rank in the equality matrix. Slot rows
	// over disjoint pools or a fully locked pool can sum to the
	// cardinality row, so dependent rows are eliminated first.
	aRows, b, consistent := reduceEqualities(aRows, b)
	if !consistent {
		return 0, nil, lp.ErrInfeasible
	}

	g := mat.NewDense(len(gRows), n, nil)
	for r, row := range gRows {
		g.SetRow(r, row)
	}
	var a mat.Matrix
	if len(aRows) > 0 {
		dense := mat.NewDense(len(aRows), n, nil)
		for r, row := range aRows {
			dense.SetRow(r, row)
		}
		a = dense
	}

	// Simplex minimizes, so negate the projection objective.
	c := make([]float64, n)
	for i, v := range sys.Objective {
		c[i] = -v
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	optF, optX, err := lp.Simplex(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		return 0, nil, err
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = optX[i] - optX[i+n]
	}
	return -optF, x, nil
}

// mostFractional returns the variable farthest from integrality, or -1
// when the assignment is integral. Ties break to the lowest index.
func mostFractional(x []float64, n int) int {
	branch := -1
	bestDist := math.Inf(1)
	for i := 0; i < n; i++ {
		if math.Abs(x[i]-math.Round(x[i])) <= integralityTol {
			continue
		}
		dist := math.Abs(x[i] - 0.5)
		if dist < bestDist {
			bestDist = dist
			branch = i
		}
	}
	return branch
}

// roundSolution snaps an integral relaxation to indices and recomputes the
// objective from the original coefficients.
func roundSolution(sys *ConstraintSystem, x []float64) ([]int, float64) {
	var selected []int
	objective := 0.0
	for i := 0; i < sys.NumVars; i++ {
		if math.Round(x[i]) == 1 {
			selected = append(selected, i)
			objective += sys.Objective[i]
		}
	}
	return selected, objective
}

// reduceEqualities runs forward elimination over the equality rows and
// returns the independent subset. A row that eliminates to zero with a
// nonzero right-hand side is a contradiction, reported as inconsistent.
func reduceEqualities(rows [][]float64, rhs []float64) ([][]float64, []float64, bool) {
	const tol = 1e-9
	m := len(rows)
	if m == 0 {
		return rows, rhs, true
	}
	n := len(rows[0])

	work := make([][]float64, m)
	for i, row := range rows {
		work[i] = append([]float64(nil), row...)
	}
	b := append([]float64(nil), rhs...)

	var pivotRows []int
	var pivotCols []int
	var kept []int
	for r := 0; r < m; r++ {
		row := work[r]
		for k, pr := range pivotRows {
			col := pivotCols[k]
			if row[col] == 0 {
				continue
			}
			factor := row[col] / work[pr][col]
			for j := 0; j < n; j++ {
				row[j] -= factor * work[pr][j]
			}
			b[r] -= factor * b[pr]
		}

		maxAbs := 0.0
		maxCol := -1
		for j := 0; j < n; j++ {
			if abs := math.Abs(row[j]); abs > maxAbs {
				maxAbs = abs
				maxCol = j
			}
		}
		if maxAbs <= tol {
			if math.Abs(b[r]) > tol {
				return nil, nil, false
			}
			continue
		}
		pivotRows = append(pivotRows, r)
		pivotCols = append(pivotCols, maxCol)
		kept = append(kept, r)
	}

	if len(kept) == m {
		return rows, rhs, true
	}
	outRows := make([][]float64, len(kept))
	outRHS := make([]float64, len(kept))
	for i, r := range kept {
		outRows[i] = rows[r]
		outRHS[i] = rhs[r]
	}
	return outRows, outRHS, true
}

func appendFix(fixed []branchFix, f branchFix) []branchFix {
	out := make([]branchFix, len(fixed), len(fixed)+1)
	copy(out, fixed)
	return append(out, f)
}

func negate(coeffs []float64) []float64 {
	out := make([]float64, len(coeffs))
	for i, v := range coeffs {
		out[i] = -v
	}
	return out
}

func isZeroRow(coeffs []float64) bool {
	for _, v := range coeffs {
		if v != 0 {
			return false
		}
	}
	return true
}
