package dice

import "go.uber.org/zap"

// Roller draws parities and 2d6 sums from a Source and logs every draw at
// debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that draws from src and logs to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Parity flips the odd/even coin.
//
// Postcondition: Returns Odd or Even with equal probability.
func (r *Roller) Parity() Parity {
	p := Even
	if r.src.Intn(2) == 0 {
		p = Odd
	}
	r.logger.Debug("parity roll", zap.String("parity", string(p)))
	return p
}

// TwoDiceSum rolls two six-sided dice and returns their sum.
//
// Postcondition: MinSum <= result <= MaxSum.
func (r *Roller) TwoDiceSum() int {
	a := r.src.Intn(6) + 1
	b := r.src.Intn(6) + 1
	r.logger.Debug("2d6 roll",
		zap.Ints("dice", []int{a, b}),
		zap.Int("total", a+b),
	)
	return a + b
}

// Draw rolls a parity followed by a 2d6 sum.
func (r *Roller) Draw() Draw {
	return Draw{Parity: r.Parity(), Sum: r.TwoDiceSum()}
}
