package tcx

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

// Scale describes a uniform rescale so that lap totals and speed
// extensions can follow the trackpoints.
type Scale struct {
	Distance float64
	Time     float64
	Start    time.Time
}

// speed returns the factor applied to any speed value.
func (s Scale) speed() float64 {
	if s.Time == 0 {
		return s.Distance
	}
	return s.Distance / s.Time
}

// Apply writes samples back into their trackpoints. Only elements that
// were present when parsing are updated. A non-nil scale also rewrites
// lap totals and speed extensions.
func (d *Document) Apply(samples []Sample, scale *Scale) error {
	if len(samples) != len(d.points) {
		return fmt.Errorf("%w: got %d samples for %d trackpoints", ErrSampleMismatch, len(samples), len(d.points))
	}

	for i, s := range samples {
		tp := d.points[i]
		if s.Time != nil && tp.time != nil {
			tp.time.SetText(FormatTime(*s.Time))
		}
		if s.Distance != nil && tp.distance != nil {
			tp.distance.SetText(FormatDistance(*s.Distance))
		}
	}

	if scale == nil {
		return nil
	}

	var err error
	walk(d.doc.Root(), func(el *etree.Element) {
		if err != nil {
			return
		}
		switch {
		case isTCX(el, "Lap"):
			err = scaleLap(el, *scale)
		case el.NamespaceURI() == NamespaceActivity:
			switch el.Tag {
			case "Speed", "AvgSpeed", "MaxSpeed":
				err = scaleValue(el, scale.speed(), 3)
			}
		}
	})
	return err
}

func scaleLap(lap *etree.Element, scale Scale) error {
	if attr := lap.SelectAttr("StartTime"); attr != nil && !scale.Start.IsZero() {
		t, err := ParseTime(attr.Value)
		if err != nil {
			return fmt.Errorf("%w: lap start time: %v", ErrParse, err)
		}
		offset := float64(t.Sub(scale.Start)) * scale.Time
		lap.CreateAttr("StartTime", FormatTime(scale.Start.Add(time.Duration(math.Round(offset)))))
	}

	if el := child(lap, NamespaceTCX, "TotalTimeSeconds"); el != nil {
		if err := scaleValue(el, scale.Time, 3); err != nil {
			return err
		}
	}
	if el := child(lap, NamespaceTCX, "DistanceMeters"); el != nil {
		if err := scaleValue(el, scale.Distance, 2); err != nil {
			return err
		}
	}
	if el := child(lap, NamespaceTCX, "MaximumSpeed"); el != nil {
		if err := scaleValue(el, scale.speed(), 3); err != nil {
			return err
		}
	}
	return nil
}

func scaleValue(el *etree.Element, factor float64, prec int) error {
	text := elementText(el)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, el.Tag, err)
	}
	el.SetText(strconv.FormatFloat(v*factor, 'f', prec, 64))
	return nil
}
