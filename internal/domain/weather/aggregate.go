// Package weather turns hourly observations into the daily aggregates joined
// into feature rows, and provides the race-level weather sources.
package weather

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/pitwall/internal/domain/model"
)

// Hourly holds one day of hourly series as returned by the archive API.
// NaN marks a missing observation.
type Hourly struct {
	WindSpeed100m      []float64
	Temperature2m      []float64
	RelativeHumidity2m []float64
	Precipitation      []float64
	PressureMSL        []float64
	SurfacePressure    []float64
}

// Aggregate reduces the series to daily values rounded to two decimals. An
// empty series yields 0 for its fields; ok is false when every series is empty.
func Aggregate(h Hourly) (model.Weather, bool) {
	wind := present(h.WindSpeed100m)
	temp := present(h.Temperature2m)
	hum := present(h.RelativeHumidity2m)
	prec := present(h.Precipitation)
	msl := present(h.PressureMSL)
	surf := present(h.SurfacePressure)

	if len(wind)+len(temp)+len(hum)+len(prec)+len(msl)+len(surf) == 0 {
		return model.Weather{}, false
	}

	return model.Weather{
		AvgWindSpeed:       round2(mean(wind)),
		MaxWindSpeed:       round2(maxOf(wind)),
		AvgTemperature:     round2(mean(temp)),
		MinTemperature:     round2(minOf(temp)),
		MaxTemperature:     round2(maxOf(temp)),
		AvgHumidity:        round2(mean(hum)),
		TotalPrecipitation: round2(floats.Sum(prec)),
		AvgPressureMSL:     round2(mean(msl)),
		AvgSurfacePressure: round2(mean(surf)),
	}, true
}

func present(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Max(xs)
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Min(xs)
}

func round2(v float64) float64 {
	r := math.RoundToEven(v*100) / 100
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
