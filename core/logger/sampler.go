package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets numerator out of every denominator events through.
// A zero ratio disables sampling and lets everything through.
type ratioSampler struct {
	ratio   atomic.Uint64 // numerator<<32 | denominator
	counter atomic.Uint64
}

func newRatioSampler(numerator, denominator int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(numerator, denominator)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(numerator, denominator int) {
	if numerator <= 0 || denominator <= 0 {
		numerator, denominator = 0, 0
	}
	numerator = min(numerator, denominator)
	s.ratio.Store(uint64(numerator)<<32 | uint64(uint32(denominator)))
	s.counter.Store(0)
}

// Allow reports whether the current event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	num, den := r>>32, r&0xffffffff
	if num == 0 || den == 0 {
		return true
	}
	n := s.counter.Add(1) - 1
	return n%den < num
}

// parseRatioSpec accepts "n/d", a bare "d" meaning 1/d, or "0" to turn
// sampling off. ok is false for anything else.
func parseRatioSpec(spec string) (num, den int, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "0" {
		return 0, 0, true
	}
	n, d, hasSlash := strings.Cut(spec, "/")
	if !hasSlash {
		n, d = "1", spec
	}
	num, err1 := strconv.Atoi(strings.TrimSpace(n))
	den, err2 := strconv.Atoi(strings.TrimSpace(d))
	if err1 != nil || err2 != nil || num <= 0 || den <= 0 {
		return 0, 0, false
	}
	return num, den, true
}
