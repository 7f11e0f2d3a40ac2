package activity

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

var runStart = time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func makeTrack(seconds []float64, meters []float64) Track {
	track := make(Track, len(seconds))
	for i := range seconds {
		track[i] = Trackpoint{
			Time:     ptr(runStart.Add(time.Duration(seconds[i] * float64(time.Second)))),
			Distance: ptr(meters[i]),
		}
	}
	return track
}

func randomTrack(r *rand.Rand) Track {
	n := 2 + r.Intn(200)
	seconds := make([]float64, n)
	meters := make([]float64, n)
	for i := 1; i < n; i++ {
		seconds[i] = seconds[i-1] + 0.5 + r.Float64()*5
		meters[i] = meters[i-1] + r.Float64()*20
	}
	meters[n-1] += 1
	return makeTrack(seconds, meters)
}

func TestRescaleDistance(t *testing.T) {
	convey.Convey("Given a three point track over 100 m", t, func() {
		track := makeTrack([]float64{0, 30, 60}, []float64{0, 50, 100})

		convey.Convey("When it is rescaled to 5 km", func() {
			out, factor, err := RescaleDistance(track, 5000)

			convey.Convey("Then every distance is scaled proportionally", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(factor, convey.ShouldEqual, 50.0)
				convey.So(*out[0].Distance, convey.ShouldEqual, 0.0)
				convey.So(*out[1].Distance, convey.ShouldAlmostEqual, 2500.0, 1e-9)
				convey.So(*out[2].Distance, convey.ShouldEqual, 5000.0)
			})

			convey.Convey("Then the input is not modified", func() {
				convey.So(*track[2].Distance, convey.ShouldEqual, 100.0)
			})
		})

		convey.Convey("When a middle point has no distance", func() {
			track[1].Distance = nil
			out, _, err := RescaleDistance(track, 5000)

			convey.Convey("Then it is left without one", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out[1].Distance, convey.ShouldBeNil)
				convey.So(*out[2].Distance, convey.ShouldEqual, 5000.0)
			})
		})

		convey.Convey("When the last point has no distance", func() {
			track[2].Distance = nil
			_, _, err := RescaleDistance(track, 5000)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the last distance is zero", func() {
			*track[2].Distance = 0
			_, _, err := RescaleDistance(track, 5000)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the last distance is negative", func() {
			*track[2].Distance = -50
			_, _, err := RescaleDistance(track, 5000)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the target is not positive", func() {
			_, _, err := RescaleDistance(track, 0)

			convey.Convey("Then ErrInvalidTarget is returned", func() {
				convey.So(errors.Is(err, ErrInvalidTarget), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given an empty track", t, func() {
		_, _, err := RescaleDistance(Track{}, 5000)

		convey.Convey("Then ErrNoTrackpoints is returned", func() {
			convey.So(errors.Is(err, ErrNoTrackpoints), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given random non-decreasing tracks", t, func() {
		r := rand.New(rand.NewSource(1))

		convey.Convey("Then the last distance hits the target and order holds", func() {
			for i := 0; i < 100; i++ {
				track := randomTrack(r)
				target := 100 + r.Float64()*42195
				out, _, err := RescaleDistance(track, target)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.Distance(), convey.ShouldAlmostEqual, target, 1e-2)
				convey.So(sort.SliceIsSorted(out, func(a, b int) bool {
					return *out[a].Distance < *out[b].Distance
				}), convey.ShouldBeTrue)
			}
		})
	})
}

func TestRescaleTime(t *testing.T) {
	convey.Convey("Given a three point track over 60 s", t, func() {
		track := makeTrack([]float64{0, 30, 60}, []float64{0, 50, 100})

		convey.Convey("When it is rescaled to 30 minutes", func() {
			out, factor, err := RescaleTime(track, 30*time.Minute)

			convey.Convey("Then timestamps stretch around the start", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(factor, convey.ShouldEqual, 30.0)
				convey.So(*out[0].Time, convey.ShouldEqual, runStart)
				convey.So(out[1].Time.Sub(runStart), convey.ShouldEqual, 15*time.Minute)
				convey.So(out.Duration(), convey.ShouldEqual, 30*time.Minute)
			})

			convey.Convey("Then the input is not modified", func() {
				convey.So(track.Duration(), convey.ShouldEqual, time.Minute)
			})
		})

		convey.Convey("When any timestamp is missing", func() {
			track[1].Time = nil
			_, _, err := RescaleTime(track, 30*time.Minute)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When first and last share a timestamp", func() {
			*track[2].Time = runStart
			_, _, err := RescaleTime(track, 30*time.Minute)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the last timestamp is before the first", func() {
			*track[2].Time = runStart.Add(-time.Minute)
			_, _, err := RescaleTime(track, 30*time.Minute)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the duration is not positive", func() {
			_, _, err := RescaleTime(track, 0)

			convey.Convey("Then ErrInvalidTarget is returned", func() {
				convey.So(errors.Is(err, ErrInvalidTarget), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given random tracks", t, func() {
		r := rand.New(rand.NewSource(2))

		convey.Convey("Then the duration hits the target within a millisecond", func() {
			for i := 0; i < 100; i++ {
				track := randomTrack(r)
				target := time.Duration((60 + r.Float64()*10000) * float64(time.Second))
				out, _, err := RescaleTime(track, target)
				convey.So(err, convey.ShouldBeNil)
				diff := out.Duration() - target
				convey.So(math.Abs(float64(diff)), convey.ShouldBeLessThanOrEqualTo, float64(time.Millisecond))
				convey.So(sort.SliceIsSorted(out, func(a, b int) bool {
					return out[a].Time.Before(*out[b].Time)
				}), convey.ShouldBeTrue)
			}
		})
	})
}

func TestExtendDistance(t *testing.T) {
	convey.Convey("Given a five point track over 400 m", t, func() {
		track := makeTrack([]float64{0, 1, 2, 3, 4}, []float64{0, 100, 200, 300, 400})

		convey.Convey("When 200 m are added", func() {
			out, err := ExtendDistance(track, 200)

			convey.Convey("Then each point gains a fixed increment", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(*out[0].Distance, convey.ShouldEqual, 0.0)
				convey.So(*out[1].Distance, convey.ShouldEqual, 150.0)
				convey.So(*out[2].Distance, convey.ShouldEqual, 300.0)
				convey.So(*out[4].Distance, convey.ShouldEqual, 600.0)
			})

			convey.Convey("Then timestamps are untouched", func() {
				convey.So(out.Duration(), convey.ShouldEqual, 4*time.Second)
			})
		})

		convey.Convey("When the track has a single point", func() {
			out, err := ExtendDistance(track[:1], 200)

			convey.Convey("Then it gains the whole amount", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(*out[0].Distance, convey.ShouldEqual, 200.0)
			})
		})

		convey.Convey("When the last point has no distance", func() {
			track[4].Distance = nil
			_, err := ExtendDistance(track, 200)

			convey.Convey("Then ErrMissingData is returned", func() {
				convey.So(errors.Is(err, ErrMissingData), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the extra distance is negative", func() {
			_, err := ExtendDistance(track, -1)

			convey.Convey("Then ErrInvalidTarget is returned", func() {
				convey.So(errors.Is(err, ErrInvalidTarget), convey.ShouldBeTrue)
			})
		})
	})
}
