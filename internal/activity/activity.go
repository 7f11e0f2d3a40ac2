package activity

import (
	"time"
)

type Trackpoint struct {
	Time     *time.Time
	Distance *float64
}

// Track is an ordered, non-empty sequence of trackpoints.
type Track []Trackpoint

type Split struct {
	Distance  float64
	SplitTime float64
}

// Calibration is one successful rescale kept in the history store.
type Calibration struct {
	ID               int64     `json:"id"`
	Source           string    `json:"source"`
	Sport            string    `json:"sport,omitempty"`
	Start            time.Time `json:"start"`
	RecordedDistance float64   `json:"recorded_distance"`
	RecordedDuration float64   `json:"recorded_duration"`
	Distance         float64   `json:"distance"`
	Duration         float64   `json:"duration"`
	DistanceFactor   float64   `json:"distance_factor"`
	TimeFactor       float64   `json:"time_factor"`
	AveragePace      float64   `json:"average_pace"`
	Splits           []Split   `json:"splits,omitempty"`
	TCX              []byte    `json:"-"`
	Created          time.Time `json:"created"`
}

func (t Track) first() Trackpoint {
	return t[0]
}

func (t Track) last() Trackpoint {
	return t[len(t)-1]
}

// Duration is the time between the first and last trackpoint. It is
// zero when either timestamp is missing.
func (t Track) Duration() time.Duration {
	if len(t) == 0 || t.first().Time == nil || t.last().Time == nil {
		return 0
	}
	return t.last().Time.Sub(*t.first().Time)
}

// Distance is the cumulative distance of the last trackpoint.
func (t Track) Distance() float64 {
	if len(t) == 0 || t.last().Distance == nil {
		return 0
	}
	return *t.last().Distance
}

func (t Track) clone() Track {
	out := make(Track, len(t))
	for i, tp := range t {
		if tp.Time != nil {
			ts := *tp.Time
			out[i].Time = &ts
		}
		if tp.Distance != nil {
			d := *tp.Distance
			out[i].Distance = &d
		}
	}
	return out
}
