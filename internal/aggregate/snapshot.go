package aggregate

import (
	"sort"
	"time"

	"cuipo/internal/core"
)

// CheckpointMonth and CheckpointDay locate the fiscal year-end cut.
const (
	CheckpointMonth = time.December
	CheckpointDay   = 1
)

// Snapshot is one selected record of a year series.
type Snapshot[R Record] struct {
	Year   int
	Date   time.Time
	Record R
}

// BuildYearSnapshotSeries picks one record per calendar year of the period
// column. Every year but the most recent contributes its 12-01 record, or
// nothing when that checkpoint is absent; the most recent year contributes
// its latest record. Ties keep the first record in input order. Records
// without a parseable period are skipped. The result is ordered by date.
func BuildYearSnapshotSeries[R Record](records []R) []Snapshot[R] {
	type dated struct {
		date time.Time
		rec  R
	}
	byYear := map[int][]dated{}
	latestYear := 0
	for _, r := range records {
		s, ok := r.Text(core.FieldPeriod).Get()
		if !ok {
			continue
		}
		d, err := core.ParsePeriodDate(s)
		if err != nil {
			continue
		}
		byYear[d.Year()] = append(byYear[d.Year()], dated{d, r})
		if d.Year() > latestYear {
			latestYear = d.Year()
		}
	}

	out := make([]Snapshot[R], 0, len(byYear))
	for year, group := range byYear {
		var pick *dated
		for i := range group {
			g := &group[i]
			if year != latestYear && (g.date.Month() != CheckpointMonth || g.date.Day() != CheckpointDay) {
				continue
			}
			if pick == nil || g.date.After(pick.date) {
				pick = g
			}
		}
		if pick != nil {
			out = append(out, Snapshot[R]{Year: year, Date: pick.date, Record: pick.rec})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
