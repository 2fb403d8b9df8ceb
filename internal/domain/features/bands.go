package features

import (
	"fmt"
	"math"
)

// Band is a closed interval [Lo, Hi].
type Band struct {
	Lo float64
	Hi float64
}

func (b Band) String() string {
	return fmt.Sprintf("%g-%g", b.Lo, b.Hi)
}

// DefaultBands returns the seven possession bands.
func DefaultBands() []Band {
	return []Band{
		{0, 35}, {36, 42}, {43, 47}, {48, 52}, {53, 57}, {58, 64}, {65, 100},
	}
}

// PossessionBand classifies v into the default possession bands.
func PossessionBand(v float64) (Band, bool) {
	bands := DefaultBands()
	i := bandIndex(bands, v)
	if i < 0 {
		return Band{}, false
	}
	return bands[i], true
}

// bandIndex returns the band holding v, or -1 when v is NaN or outside the
// outer edges. A value in the gap between two bands belongs to the upper one.
func bandIndex(bands []Band, v float64) int {
	if len(bands) == 0 || math.IsNaN(v) || v < bands[0].Lo || v > bands[len(bands)-1].Hi {
		return -1
	}
	for i, b := range bands {
		if v <= b.Hi {
			return i
		}
	}
	return -1
}

func validateBands(bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: no possession bands", ErrInvalidSpec)
	}
	for i, b := range bands {
		if b.Lo > b.Hi {
			return fmt.Errorf("%w: band %s inverted", ErrInvalidSpec, b)
		}
		if i > 0 && b.Lo <= bands[i-1].Hi {
			return fmt.Errorf("%w: band %s overlaps %s", ErrInvalidSpec, b, bands[i-1])
		}
	}
	return nil
}
