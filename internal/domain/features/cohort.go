package features

import (
	"math"

	"github.com/okian/matchform/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// cohort accumulates the history of already processed records and answers,
// for a target record, the per-column mean over its eligible part. Records
// are added in timestamp order, so every sum runs in chronological order.
type cohort interface {
	// mean writes one value per spec column into out, NaN when the cohort
	// is empty for that column.
	mean(r *model.MatchRecord, out []float64)
	add(r *model.MatchRecord, vals []float64)
}

// accumulator is a running per-column sum over present values.
type accumulator struct {
	sum []float64
	n   []int
}

func newAccumulator(width int) *accumulator {
	return &accumulator{sum: make([]float64, width), n: make([]int, width)}
}

func (a *accumulator) add(vals []float64) {
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		a.sum[i] += v
		a.n[i]++
	}
}

func (a *accumulator) mean(out []float64) {
	for i := range out {
		if a == nil || a.n[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = a.sum[i] / float64(a.n[i])
	}
}

// keyFunc derives a cohort key from a record; false means the record has no
// key and takes no part in the cohort.
type keyFunc func(r *model.MatchRecord) (string, bool)

// keyed groups history by a key. storeKey files a processed record and
// lookupKey picks the group a target reads, which differ for the opponent
// mirror.
type keyed struct {
	width     int
	storeKey  keyFunc
	lookupKey keyFunc
	groups    map[string]*accumulator
}

func newKeyed(width int, store, lookup keyFunc) *keyed {
	return &keyed{width: width, storeKey: store, lookupKey: lookup, groups: make(map[string]*accumulator)}
}

func (k *keyed) mean(r *model.MatchRecord, out []float64) {
	key, ok := k.lookupKey(r)
	if !ok {
		fillNaN(out)
		return
	}
	k.groups[key].mean(out)
}

func (k *keyed) add(r *model.MatchRecord, vals []float64) {
	key, ok := k.storeKey(r)
	if !ok {
		return
	}
	acc, found := k.groups[key]
	if !found {
		acc = newAccumulator(k.width)
		k.groups[key] = acc
	}
	acc.add(vals)
}

// window keeps the last size value rows of every team.
type window struct {
	size  int
	teams map[string][][]float64
	buf   []float64
}

func newWindow(size, width int) *window {
	return &window{size: size, teams: make(map[string][][]float64), buf: make([]float64, 0, size)}
}

func (w *window) mean(r *model.MatchRecord, out []float64) {
	rows := w.teams[r.TeamID]
	for i := range out {
		w.buf = w.buf[:0]
		for _, row := range rows {
			if !math.IsNaN(row[i]) {
				w.buf = append(w.buf, row[i])
			}
		}
		if len(w.buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.Mean(w.buf, nil)
	}
}

func (w *window) add(r *model.MatchRecord, vals []float64) {
	rows := append(w.teams[r.TeamID], vals)
	if len(rows) > w.size {
		rows = rows[len(rows)-w.size:]
	}
	w.teams[r.TeamID] = rows
}

// centred matches history whose conditioning value lies within band of the
// target's. Its eligible set depends on the target value, so it scans the
// chronological history instead of keeping running sums.
type centred struct {
	band  float64
	value func(r *model.MatchRecord) float64
	keys  []float64
	rows  [][]float64
	acc   *accumulator
}

func newCentred(width int, band float64, value func(r *model.MatchRecord) float64) *centred {
	return &centred{band: band, value: value, acc: newAccumulator(width)}
}

func (c *centred) mean(r *model.MatchRecord, out []float64) {
	centre := c.value(r)
	if math.IsNaN(centre) {
		fillNaN(out)
		return
	}
	lo, hi := centre-c.band, centre+c.band
	for i := range c.acc.sum {
		c.acc.sum[i], c.acc.n[i] = 0, 0
	}
	for j, k := range c.keys {
		if k >= lo && k <= hi {
			c.acc.add(c.rows[j])
		}
	}
	c.acc.mean(out)
}

func (c *centred) add(r *model.MatchRecord, vals []float64) {
	k := c.value(r)
	if math.IsNaN(k) {
		return
	}
	c.keys = append(c.keys, k)
	c.rows = append(c.rows, vals)
}

func fillNaN(out []float64) {
	for i := range out {
		out[i] = math.NaN()
	}
}
