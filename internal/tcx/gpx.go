package tcx

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/tkrajina/gpxgo/gpx"
)

const gpxCreator = "calibrate-my-run"

// GPX exports every trackpoint that carries a Position as a single GPX
// track. Treadmill recordings usually have none.
func (d *Document) GPX() (*gpx.GPX, error) {
	seg := gpx.GPXTrackSegment{}

	for i, tp := range d.points {
		pos := child(tp.el, NamespaceTCX, "Position")
		if pos == nil {
			continue
		}
		lat, err := floatChild(pos, "LatitudeDegrees")
		if err != nil {
			return nil, fmt.Errorf("trackpoint %d: %w", i, err)
		}
		lon, err := floatChild(pos, "LongitudeDegrees")
		if err != nil {
			return nil, fmt.Errorf("trackpoint %d: %w", i, err)
		}
		if lat == nil || lon == nil {
			continue
		}

		p := gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  *lat,
				Longitude: *lon,
			},
		}
		if text := elementText(tp.time); text != "" {
			t, err := ParseTime(text)
			if err != nil {
				return nil, fmt.Errorf("%w: trackpoint %d: %v", ErrParse, i, err)
			}
			p.Timestamp = t.UTC()
		}
		alt, err := floatChild(tp.el, "AltitudeMeters")
		if err != nil {
			return nil, fmt.Errorf("trackpoint %d: %w", i, err)
		}
		if alt != nil {
			p.Elevation = *gpx.NewNullableFloat64(*alt)
		}

		seg.AppendPoint(&p)
	}

	if len(seg.Points) == 0 {
		return nil, ErrNoPositions
	}

	g := &gpx.GPX{
		Version: "1.1",
		Creator: gpxCreator,
	}
	g.Tracks = append(g.Tracks, gpx.GPXTrack{
		Type:     d.Sport(),
		Segments: []gpx.GPXTrackSegment{seg},
	})
	return g, nil
}

// WriteGPX serializes the GPX export of d to filename.
func (d *Document) WriteGPX(filename string) error {
	g, err := d.GPX()
	if err != nil {
		return err
	}

	b, err := g.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if err := writeFileAtomic(filename, b); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func floatChild(el *etree.Element, tag string) (*float64, error) {
	text := elementText(child(el, NamespaceTCX, tag))
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, tag, err)
	}
	return &v, nil
}
