package dice

import (
	"fmt"

	"go.uber.org/zap"
)

// Roller wraps a Source and logger to provide logged dice rolling.
// All rolls are logged at debug level with expression, dice values, modifier, and total.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Source returns the underlying randomness source.
func (r *Roller) Source() Source { return r.src }

// Roll evaluates expr and logs the result at debug level.
//
// Precondition: expr must come from Parse.
// Postcondition: result logged; returns RollResult or error.
func (r *Roller) Roll(expr Expression) (RollResult, error) {
	if expr.Count < 1 || expr.Sides < 2 {
		return RollResult{}, fmt.Errorf("dice: expression %q was not produced by Parse", expr.Raw)
	}
	result := expr.roll(r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result, nil
}

// RollExpr parses expr and rolls it, logging the result.
//
// Precondition: expr must be a valid dice expression string.
// Postcondition: Returns a RollResult or a parse/roll error.
func (r *Roller) RollExpr(expr string) (RollResult, error) {
	e, err := Parse(expr)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e)
}

// Chance draws a float in [0, 1) and reports whether it falls below p, logging the draw.
//
// Postcondition: Returns false when p <= 0 and true when p > 1.
func (r *Roller) Chance(label string, p float64) bool {
	v := r.src.Float64()
	hit := v < p
	r.logger.Debug("chance roll",
		zap.String("label", label),
		zap.Float64("chance", p),
		zap.Float64("draw", v),
		zap.Bool("hit", hit),
	)
	return hit
}
