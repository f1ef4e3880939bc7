// Package indicator implements the technical-analysis indicators used for
// regime classification: EMA, ATR, SMA and ADX.
//
// All functions are pure and operate on float64 series ordered oldest first.
// Smoothing follows the common charting-library definitions: an EMA is seeded
// with the first value, Wilder's moving average (MMA) is an EMA with
// multiplier 1/period, and the true range of the first bar is its high-low span.
package indicator

import "math"

// Bar is the price triple the indicators need from a candle.
type Bar struct {
	High  float64
	Low   float64
	Close float64
}

// EMA returns the exponential moving average of values evaluated at the last index.
func EMA(values []float64, period int) float64 {
	s := emaSeries(values, 2.0/float64(period+1))
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// MMA returns Wilder's modified moving average series of values.
func MMA(values []float64, period int) []float64 {
	return emaSeries(values, 1.0/float64(period))
}

func emaSeries(values []float64, k float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + (values[i]-out[i-1])*k
	}
	return out
}

// SMA returns the simple moving average of the last period values.
// When fewer values are available, it averages what is there.
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	start := len(values) - period
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range values[start:] {
		sum += v
	}
	return sum / float64(len(values)-start)
}

// TrueRange returns the true range of every bar.
func TrueRange(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		tr := b.High - b.Low
		if i > 0 {
			prev := bars[i-1].Close
			tr = math.Max(tr, math.Max(math.Abs(b.High-prev), math.Abs(b.Low-prev)))
		}
		out[i] = tr
	}
	return out
}

// ATR returns the average true range series (MMA of the true range).
func ATR(bars []Bar, period int) []float64 {
	return MMA(TrueRange(bars), period)
}

// ADX returns the average directional index evaluated at the last bar.
// The result is in [0, 100]; 0 is returned for an empty series.
func ADX(bars []Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}

	plusDM := make([]float64, len(bars))
	minusDM := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := ATR(bars, period)
	smoothedPlus := MMA(plusDM, period)
	smoothedMinus := MMA(minusDM, period)

	dx := make([]float64, len(bars))
	for i := range bars {
		if atr[i] == 0 {
			continue
		}
		plusDI := smoothedPlus[i] / atr[i] * 100
		minusDI := smoothedMinus[i] / atr[i] * 100
		if sum := plusDI + minusDI; sum != 0 {
			dx[i] = math.Abs(plusDI-minusDI) / sum * 100
		}
	}

	adx := MMA(dx, period)
	return adx[len(adx)-1]
}
