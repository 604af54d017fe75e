package solver

import (
	"fmt"
	"time"

	"hypergame/internal/game"
)

// Kinds accepted by New.
const (
	KindEnumeration = "enumeration"
	KindGambit      = "gambit"
)

// Options selects and parameterises a solver.
type Options struct {
	Kind      string
	Binary    string
	Arguments []string
	Timeout   time.Duration
}

// New builds the solver named by opts.Kind. Empty kind means enumeration.
func New(opts Options) (game.Solver, error) {
	switch opts.Kind {
	case "", KindEnumeration:
		return WithTimeout(NewSupportEnumeration(), opts.Timeout), nil
	case KindGambit:
		g := NewGambit()
		if opts.Binary != "" {
			g.Binary = opts.Binary
		}
		if opts.Arguments != nil {
			g.Arguments = append([]string(nil), opts.Arguments...)
		}
		g.Timeout = opts.Timeout
		return g, nil
	default:
		return nil, fmt.Errorf("unknown solver kind %q (valid: %s, %s)", opts.Kind, KindEnumeration, KindGambit)
	}
}
