// Package numgrade grades free-form mathematical expressions numerically.
//
// An instructor describes an answer as an expression along with declared
// variables, sampling sets, a tolerance, and a comparison rule. A student's
// submission is parsed into an AST, both expressions are evaluated against
// identical randomly sampled variable bindings over several trials, and the
// submission is correct only when every trial compares as matching within
// tolerance. "x*x" therefore grades equal to "x^2" without any symbolic
// manipulation.
//
// Values are complex scalars, vectors, matrices, or higher-rank tensors with
// strictly shape-checked arithmetic. Sampling sets cover real intervals,
// integer ranges, complex regions, discrete sets, vector and matrix
// distributions, dependent formulas, and randomized well-behaved functions.
//
// Grading with a fixed seed is deterministic: identical inputs and seed
// produce identical per-trial bindings and an identical verdict.
package numgrade
