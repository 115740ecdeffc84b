package math

import (
	"fmt"
	"math"
)

const Z_95 = 1.96

// Wilson returns the 95% Wilson score interval bound for the observed rate
// num/den: the lower bound if lower is set, the upper bound otherwise.
func Wilson(num, den float64, lower bool) (float64, error) {
	if num > den {
		return 0, fmt.Errorf("numerator can not be greater than denominator for rates")
	}
	if den == 0 {
		return 0, nil
	}

	// (p + Z²/2n ± Z√(p(1-p)/n + Z²/4n²)) / (1 + Z²/n)
	p := num / den
	base := p + (Z_95*Z_95)/(2*den)
	plusminus := Z_95 * math.Sqrt(p*(1-p)/den+(Z_95*Z_95)/(4*den*den))
	normalize := 1 + (Z_95*Z_95)/den
	if lower {
		return (base - plusminus) / normalize, nil
	}
	return (base + plusminus) / normalize, nil
}

// WilsonInterval returns both bounds of the 95% Wilson score interval.
func WilsonInterval(num, den float64) (float64, float64, error) {
	lo, err := Wilson(num, den, true)
	if err != nil {
		return 0, 0, err
	}
	hi, err := Wilson(num, den, false)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}
