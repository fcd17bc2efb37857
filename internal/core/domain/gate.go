package domain

import "log/slog"

// Gate chains the three validation layers in cost order: the heuristic
// Guard as a cheap pre-filter, the strict-mode rules, then the dialect
// parser as the structural backstop. The first layer to object wins, so the
// reported violation is always the earliest rule hit.
type Gate struct {
	strict  *StrictValidator
	dialect *DialectValidator
}

// NewGate builds the full validation chain. strictMode enables the function
// allow-list and complexity ceilings; the heuristic and parser layers run
// regardless.
func NewGate(strictMode bool, logger *slog.Logger) *Gate {
	guard := NewGuard(logger)
	return &Gate{
		strict:  NewStrictValidator(guard, strictMode, logger),
		dialect: NewDialectValidator(logger),
	}
}

func (g *Gate) Validate(query string) error {
	if err := g.strict.Validate(query); err != nil {
		return err
	}
	return g.dialect.Validate(query)
}
