package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMASeries returns the simple moving average at every index, aligned with
// the input. The first length-1 entries are NaN while the window fills.
func SMASeries(closes []float64, length int) []float64 {
	if length <= 1 || len(closes) < length {
		return nil
	}
	return talib.Sma(closes, length)
}
