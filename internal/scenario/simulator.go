package scenario

import (
	"math"

	"github.com/breatheroute/aqiforecast/internal/aqi"
)

const (
	rainfallParticulateFactor = 0.6
	rainfallSO2Factor         = 0.9

	windCoefficient = 0.02
	windFactorMin   = 0.3
	windFactorMax   = 1.2

	temperatureCoefficient = 0.01
	temperatureFactorMin   = 0.5
	temperatureFactorMax   = 1.5

	particulateFloor = 0.1
)

// Apply runs the scenario pipeline over the request's base pollutants.
//
// The steps run in a fixed order, each reading the previous one's output:
// traffic, industrial activity, rainfall washout, wind dilution, the
// temperature effect on ozone, then the non-negative floors. The AQI is
// computed from the unrounded PM2.5; only the returned concentrations are
// rounded.
func Apply(req Request) Result {
	p := req.BasePollutants.Resolve()

	t := 1 + req.TrafficChangePercent/100
	p.NO2 *= t
	p.PM25 *= t
	p.PM10 *= t

	i := 1 + req.IndustrialChangePercent/100
	p.SO2 *= i
	p.PM25 *= i
	p.PM10 *= i

	if req.Rainfall {
		p.PM25 *= rainfallParticulateFactor
		p.PM10 *= rainfallParticulateFactor
		p.SO2 *= rainfallSO2Factor
	}

	w := clamp(1-req.WindSpeedChange*windCoefficient, windFactorMin, windFactorMax)
	p.PM25 *= w
	p.PM10 *= w
	p.NO2 *= w
	p.SO2 *= w
	p.O3 *= w

	p.O3 *= clamp(1+req.TemperatureChange*temperatureCoefficient, temperatureFactorMin, temperatureFactorMax)

	p.PM25 = math.Max(particulateFloor, p.PM25)
	p.PM10 = math.Max(particulateFloor, p.PM10)
	p.NO2 = math.Max(0, p.NO2)
	p.SO2 = math.Max(0, p.SO2)
	p.O3 = math.Max(0, p.O3)
	p.CO = math.Max(0, p.CO)

	simulated := aqi.FromPM25(p.PM25)
	return Result{
		SimulatedAQI:        simulated,
		SimulatedCategory:   aqi.CategoryOf(float64(simulated)),
		SimulatedPollutants: p.rounded(),
	}
}

// Simulate applies the scenario and reports it alongside the base state
// with health advisories for both.
func Simulate(req Request) Outcome {
	res := Apply(req)
	base := aqi.CategoryOfPtr(req.BaseAQI)
	return Outcome{
		Result:                  res,
		BaseAQI:                 req.BaseAQI,
		BaseCategory:            base,
		HealthAdvisoryOriginal:  aqi.Advisory(base),
		HealthAdvisorySimulated: aqi.Advisory(res.SimulatedCategory),
		Disclaimer:              Disclaimer,
	}
}

func (p Pollutants) rounded() Pollutants {
	return Pollutants{
		PM25: round(p.PM25, 2),
		PM10: round(p.PM10, 2),
		NO2:  round(p.NO2, 2),
		SO2:  round(p.SO2, 2),
		O3:   round(p.O3, 2),
		CO:   round(p.CO, 4),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
