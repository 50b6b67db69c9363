package solverlib

import (
	"strconv"
	"strings"
)

// State is the option state of the sparse solver. The zero State is not initialized.
type State struct {
	initialized bool
	majorIter   int
	optTol      float64
	feasTol     float64
	infBound    float64
	printLevel  int
}

const (
	defaultMajorIter = 1000
	defaultTolerance = 1e-6
	defaultInfBound  = 1e20
)

// Initialized reports whether SparseInit was called on s.
func (s *State) Initialized() bool { return s.initialized }

func (s *State) reset() {
	*s = State{
		initialized: true,
		majorIter:   defaultMajorIter,
		optTol:      defaultTolerance,
		feasTol:     defaultTolerance,
		infBound:    defaultInfBound,
	}
}

// apply parses one "Key = Value" option into s.
func (s *State) apply(option string, fail *Fail) {
	key, val, ok := strings.Cut(option, "=")
	if !ok {
		fail.Set(InvalidOption, "option %q is not of the form Key = Value", option)
		return
	}
	key = strings.ToLower(strings.Join(strings.Fields(key), " "))
	val = strings.TrimSpace(val)

	positive := func() (float64, bool) {
		v, err := strconv.ParseFloat(val, 64)
		if err != nil || !(v > 0) {
			fail.Set(InvalidOption, "value %q of %q must be a positive number", val, key)
			return 0, false
		}
		return v, true
	}
	integer := func(least int) (int, bool) {
		v, err := strconv.Atoi(val)
		if err != nil || v < least {
			fail.Set(InvalidOption, "value %q of %q must be an integer not less than %d", val, key, least)
			return 0, false
		}
		return v, true
	}

	switch key {
	case "major iterations limit":
		if v, ok := integer(1); ok {
			s.majorIter = v
		}
	case "major optimality tolerance":
		if v, ok := positive(); ok {
			s.optTol = v
		}
	case "major feasibility tolerance":
		if v, ok := positive(); ok {
			s.feasTol = v
		}
	case "infinite bound size":
		if v, ok := positive(); ok {
			s.infBound = v
		}
	case "print level":
		if v, ok := integer(0); ok {
			s.printLevel = v
		}
	default:
		fail.Set(InvalidOption, "unknown option %q", strings.TrimSpace(option))
	}
}
