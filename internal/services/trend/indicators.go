package trend

// EMA is an incremental exponential moving average. It seeds with the simple
// average of the first `period` samples, then applies the standard
// 2/(period+1) multiplier.
type EMA struct {
	period int
	mult   float64
	seed   []float64
	value  float64
	ready  bool
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		mult:   2.0 / float64(period+1),
		seed:   make([]float64, 0, period),
	}
}

// Update feeds one sample and returns the current value.
func (e *EMA) Update(v float64) float64 {
	if !e.ready {
		e.seed = append(e.seed, v)
		if len(e.seed) < e.period {
			e.value = v
			return e.value
		}
		var sum float64
		for _, s := range e.seed {
			sum += s
		}
		e.value = sum / float64(e.period)
		e.seed = nil
		e.ready = true
		return e.value
	}
	e.value = (v-e.value)*e.mult + e.value
	return e.value
}

// Value returns the current average.
func (e *EMA) Value() float64 { return e.value }

// Ready reports whether the seed window is filled.
func (e *EMA) Ready() bool { return e.ready }

// RSI is an incremental Wilder-smoothed relative strength index:
// avg = (avg*(period-1) + delta) / period after the seed window.
type RSI struct {
	period   int
	prev     float64
	hasPrev  bool
	seen     int
	avgGain  float64
	avgLoss  float64
	seedGain float64
	seedLoss float64
}

func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Update feeds one close price.
func (r *RSI) Update(close float64) {
	if !r.hasPrev {
		r.prev = close
		r.hasPrev = true
		return
	}
	delta := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	r.seen++
	if r.seen <= r.period {
		r.seedGain += gain
		r.seedLoss += loss
		if r.seen == r.period {
			r.avgGain = r.seedGain / float64(r.period)
			r.avgLoss = r.seedLoss / float64(r.period)
		}
		return
	}
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

// Ready reports whether enough deltas have been seen.
func (r *RSI) Ready() bool { return r.seen >= r.period }

// Value returns the RSI in [0,100]; 50 while warming up.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 50
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

// SMA is a rolling simple moving average over a fixed window.
type SMA struct {
	window []float64
	size   int
	sum    float64
	next   int
	filled bool
}

func NewSMA(size int) *SMA {
	return &SMA{window: make([]float64, size), size: size}
}

// Update feeds one sample.
func (s *SMA) Update(v float64) {
	if s.filled {
		s.sum -= s.window[s.next]
	}
	s.window[s.next] = v
	s.sum += v
	s.next++
	if s.next == s.size {
		s.next = 0
		s.filled = true
	}
}

// Ready reports whether the window is filled.
func (s *SMA) Ready() bool { return s.filled }

// Value returns the current average, or 0 while warming up.
func (s *SMA) Value() float64 {
	if !s.filled {
		return 0
	}
	return s.sum / float64(s.size)
}
