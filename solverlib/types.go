// Package solverlib is the boundary to a nonlinear optimization library with a flat
// C calling convention: counts and 1-based index arrays are Integer, buffers are
// caller owned slices, names are C strings and callbacks receive only a Comm.
package solverlib

import "fmt"

// Integer is the integer type of the library ABI.
type Integer = int32

// ErrorCode is the status reported by the library in Fail.
type ErrorCode int

const (
	NoError ErrorCode = iota
	BadParam
	InvalidOption
	TooManyIterations
	Infeasible
	NumericalDifficulties
	UserStop
	Internal
)

var codeNames = [...]string{
	NoError:               "NE_NOERROR",
	BadParam:              "NE_BAD_PARAM",
	InvalidOption:         "NE_INVALID_OPTION",
	TooManyIterations:     "NW_TOO_MANY_ITER",
	Infeasible:            "NW_NOT_FEASIBLE",
	NumericalDifficulties: "NE_NUM_DIFFICULTIES",
	UserStop:              "NE_USER_STOP",
	Internal:              "NE_INTERNAL_ERROR",
}

func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Fail receives the outcome of a library call.
type Fail struct {
	Code    ErrorCode
	Message string
}

// Init resets f to NoError.
func (f *Fail) Init() { *f = Fail{} }

// Set records a failure unless one is already recorded.
func (f *Fail) Set(code ErrorCode, format string, args ...any) {
	if f.Code != NoError {
		return
	}
	f.Code = code
	f.Message = fmt.Sprintf("%s: %s", code, fmt.Sprintf(format, args...))
}

// Comm is handed back untouched to every callback.
type Comm struct {
	P Handle
}

// StartKind selects how the sparse solver initializes its working set.
// Only Cold is accepted by the Reference library.
type StartKind int

const Cold StartKind = 0

// UserFunc evaluates nonlinear outputs and jacobian entries of a sparse problem.
//
// On entry status is 1 for the first call, 0 for later calls and ≥ 2 for the final
// call. When needf > 0 the nonlinear rows of f are requested; when needg > 0 the
// leng values of the G pattern are requested in pattern order.
// Setting status to a negative value asks the library to stop.
type UserFunc func(status *Integer, n Integer, x []float64, needf Integer, nf Integer, f []float64,
	needg Integer, leng Integer, g []float64, comm *Comm)

// DerivFunc evaluates a one variable function and its derivative at xc.
type DerivFunc func(xc float64, fc, gc *float64, comm *Comm)

// ScalarFunc evaluates a one variable function at xc.
type ScalarFunc func(xc float64, fc *float64, comm *Comm)

// SparseCall carries the arguments of a sparse solve.
// The library reads the inputs and writes X, XState, XMul, F, FState, FMul, NS, NInf and SInf.
type SparseCall struct {
	Start          StartKind
	NF, N          Integer
	NXName, NFName Integer
	ObjAdd         float64
	ObjRow         Integer
	Prob           string
	UsrFun         UserFunc

	IAFun, JAVar []Integer
	A            []float64
	LenA, NEA    Integer

	IGFun, JGVar []Integer
	LenG, NEG    Integer

	XLow, XUpp []float64
	XNames     []*CString
	FLow, FUpp []float64
	FNames     []*CString

	X      []float64
	XState []Integer
	XMul   []float64
	F      []float64
	FState []Integer
	FMul   []float64

	NS, NInf Integer
	SInf     float64
}

// Library is the set of entry points consumed by the solvers.
type Library interface {
	// SparseInit initializes the option state of the sparse solver.
	SparseInit(state *State, fail *Fail)
	// SparseOption applies one "Key = Value" option.
	SparseOption(state *State, option string, fail *Fail)
	// SparseSolve solves the sparse problem described by call.
	SparseSolve(call *SparseCall, state *State, comm *Comm, fail *Fail)
	// OneVarDeriv minimizes a one variable function on [a, b] using its derivative.
	OneVarDeriv(fn DerivFunc, e1, e2 float64, a, b *float64, maxCal Integer, x, f, g *float64, comm *Comm, fail *Fail)
	// OneVar minimizes a one variable function on [a, b] using function values only.
	OneVar(fn ScalarFunc, e1, e2 float64, a, b *float64, maxCal Integer, x, f *float64, comm *Comm, fail *Fail)
}
