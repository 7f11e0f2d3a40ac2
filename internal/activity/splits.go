package activity

import "time"

const splitDistance = 1000.0

// CalculateSplits returns one split per full kilometer and a trailing
// partial split for whatever is left. Trackpoints missing a time or a
// distance are skipped.
func CalculateSplits(track Track) []Split {
	var splits []Split
	var prev *Trackpoint
	var startTime time.Time
	totalDistance := 0.0 // meters since the last split

	for i := range track {
		point := track[i]
		if point.Time == nil || point.Distance == nil {
			continue
		}
		if prev == nil {
			prev = &track[i]
			startTime = *point.Time
			continue
		}

		totalDistance += *point.Distance - *prev.Distance
		prev = &track[i]

		for totalDistance >= splitDistance {
			splits = append(splits, Split{
				Distance:  splitDistance,
				SplitTime: point.Time.Sub(startTime).Seconds(),
			})
			startTime = *point.Time
			totalDistance -= splitDistance
		}
	}

	if prev != nil && totalDistance > 0 {
		splits = append(splits, Split{
			Distance:  totalDistance,
			SplitTime: prev.Time.Sub(startTime).Seconds(),
		})
	}

	return splits
}
