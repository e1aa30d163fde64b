package feature

import (
	"math"

	"github.com/breatheroute/aqiforecast/internal/aqi"
)

// Build derives the full feature table for a series: the rolling PM2.5
// mean and AQI target over DefaultWindow, then the cyclical time encodings.
func Build(series Series) []Row {
	return PrepareFeatures(BuildRollingAQI(series, DefaultWindow))
}

// BuildRollingAQI computes, for each reading, the mean PM2.5 over the
// trailing window ending at that reading and the AQI of that mean.
//
// Missing PM2.5 samples are skipped; partial windows at the start of the
// series use whatever samples are available. A window with no PM2.5 at
// all leaves PM25Mean nil and AQI 0. Row order is preserved.
func BuildRollingAQI(series Series, window int) []Row {
	if window < 1 {
		window = 1
	}

	rows := make([]Row, len(series))
	acc := newRollingMean(window)
	for i := range series {
		rows[i].Reading = series[i]
		mean, ok := acc.push(series[i].PM25)
		if !ok {
			continue
		}
		rows[i].PM25Mean = &mean
		rows[i].AQI = aqi.FromPM25(mean)
	}
	return rows
}

// PrepareFeatures returns a copy of rows with hour-of-day and day-of-week
// sine/cosine encodings set. Day 0 is Monday. When the rows carry no
// timestamps every row is encoded as midnight on day 0.
func PrepareFeatures(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	hasTime := false
	for i := range out {
		if !out[i].Time.IsZero() {
			hasTime = true
			break
		}
	}

	for i := range out {
		if !hasTime {
			out[i].HourSin, out[i].HourCos = 0, 1
			out[i].DowSin, out[i].DowCos = 0, 1
			continue
		}
		hour := float64(out[i].Time.Hour())
		dow := float64((int(out[i].Time.Weekday()) + 6) % 7)

		out[i].HourSin = math.Sin(2 * math.Pi * hour / 24)
		out[i].HourCos = math.Cos(2 * math.Pi * hour / 24)
		out[i].DowSin = math.Sin(2 * math.Pi * dow / 7)
		out[i].DowCos = math.Cos(2 * math.Pi * dow / 7)
	}
	return out
}

// WithTarget returns the rows whose AQI target is backed by a PM2.5 mean.
func WithTarget(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for i := range rows {
		if rows[i].PM25Mean != nil {
			out = append(out, rows[i])
		}
	}
	return out
}

// Targets returns the AQI target of each row as a float.
func Targets(rows []Row) []float64 {
	y := make([]float64, len(rows))
	for i := range rows {
		y[i] = float64(rows[i].AQI)
	}
	return y
}

// rollingMean is a fixed-size ring buffer over optional samples that keeps
// a running sum and count of the present ones.
type rollingMean struct {
	values  []float64
	present []bool
	next    int
	sum     float64
	count   int
}

func newRollingMean(size int) *rollingMean {
	return &rollingMean{
		values:  make([]float64, size),
		present: make([]bool, size),
	}
}

// push adds a sample, evicting the oldest, and returns the mean of the
// present samples in the window.
func (r *rollingMean) push(v *float64) (float64, bool) {
	if r.present[r.next] {
		r.sum -= r.values[r.next]
		r.count--
	}

	if v != nil && !math.IsNaN(*v) {
		r.values[r.next] = *v
		r.present[r.next] = true
		r.sum += *v
		r.count++
	} else {
		r.values[r.next] = 0
		r.present[r.next] = false
	}

	r.next = (r.next + 1) % len(r.values)

	if r.count == 0 {
		return math.NaN(), false
	}
	return r.sum / float64(r.count), true
}
