package powerfit

import (
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// RoundSig rounds x to sig significant digits. Zero, NaN and infinities have
// no magnitude to round against and are reported as 0.
func RoundSig(x float64, sig int) float64 {
	if x == 0 || !finite(x) {
		return 0
	}
	if sig <= 0 {
		return x
	}

	// Formatting rounds the exact binary value in decimal, so the result is
	// the double nearest the rounded decimal.
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(x, 'e', sig-1, 64), 64)
	if err != nil {
		return x
	}

	return rounded
}

// Peak returns the index and value of the largest density. Ties resolve to the
// lowest index. An empty histogram peaks at index 0 with value 0.
func Peak(density []float64) (index int, value float64) {
	if len(density) == 0 {
		return 0, 0
	}

	index = floats.MaxIdx(density)
	return index, density[index]
}

// ESDDiff is the signed gap between the start of the fitting window and the
// peak of the distribution. Positive values mean the peak sits below the
// window, which is typical of bubbles or beads; negative values mean it sits
// inside it.
func ESDDiff(density []float64, startFit int) int {
	index, _ := Peak(density)
	return startFit - index
}
