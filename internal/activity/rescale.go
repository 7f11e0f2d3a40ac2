package activity

import (
	"fmt"
	"math"
	"time"
)

// RescaleDistance scales every cumulative distance so the last trackpoint
// ends at targetMeters. The input track is left untouched.
func RescaleDistance(track Track, targetMeters float64) (Track, float64, error) {
	if len(track) == 0 {
		return nil, 0, ErrNoTrackpoints
	}
	if !(targetMeters > 0) || math.IsInf(targetMeters, 0) {
		return nil, 0, fmt.Errorf("%w: distance %v", ErrInvalidTarget, targetMeters)
	}

	last := track.last().Distance
	if last == nil || *last == 0 {
		return nil, 0, fmt.Errorf("%w: no distance on the last trackpoint", ErrMissingData)
	}
	if *last < 0 {
		return nil, 0, fmt.Errorf("%w: negative distance %v on the last trackpoint", ErrMissingData, *last)
	}

	factor := targetMeters / *last
	out := track.clone()
	for i := range out {
		if out[i].Distance == nil {
			continue
		}
		*out[i].Distance *= factor
	}
	*out[len(out)-1].Distance = targetMeters

	return out, factor, nil
}

// RescaleTime stretches every timestamp around the first one so the
// track lasts exactly target.
func RescaleTime(track Track, target time.Duration) (Track, float64, error) {
	if len(track) == 0 {
		return nil, 0, ErrNoTrackpoints
	}
	if target <= 0 {
		return nil, 0, fmt.Errorf("%w: duration %v", ErrInvalidTarget, target)
	}

	for i, tp := range track {
		if tp.Time == nil {
			return nil, 0, fmt.Errorf("%w: no time on trackpoint %d", ErrMissingData, i)
		}
	}

	start := *track.first().Time
	recorded := track.last().Time.Sub(start)
	if recorded == 0 {
		return nil, 0, fmt.Errorf("%w: first and last trackpoint share a timestamp", ErrMissingData)
	}
	if recorded < 0 {
		return nil, 0, fmt.Errorf("%w: last trackpoint is %v before the first", ErrMissingData, -recorded)
	}

	factor := float64(target) / float64(recorded)
	out := track.clone()
	for i := range out {
		offset := float64(out[i].Time.Sub(start)) * factor
		*out[i].Time = start.Add(time.Duration(math.Round(offset)))
	}
	*out[len(out)-1].Time = start.Add(target)

	return out, factor, nil
}

// ExtendDistance adds extraMeters spread evenly over the track: the first
// trackpoint keeps its distance and the last gains the full amount.
func ExtendDistance(track Track, extraMeters float64) (Track, error) {
	if len(track) == 0 {
		return nil, ErrNoTrackpoints
	}
	if !(extraMeters >= 0) || math.IsInf(extraMeters, 0) {
		return nil, fmt.Errorf("%w: distance %v", ErrInvalidTarget, extraMeters)
	}
	if track.last().Distance == nil {
		return nil, fmt.Errorf("%w: no distance on the last trackpoint", ErrMissingData)
	}

	out := track.clone()
	if len(out) == 1 {
		*out[0].Distance += extraMeters
		return out, nil
	}

	step := extraMeters / float64(len(out)-1)
	for i := range out {
		if out[i].Distance == nil {
			continue
		}
		*out[i].Distance += step * float64(i)
	}
	*out[len(out)-1].Distance = track.Distance() + extraMeters

	return out, nil
}
