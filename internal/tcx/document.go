package tcx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	NamespaceTCX      = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"
	NamespaceActivity = "http://www.garmin.com/xmlschemas/ActivityExtension/v2"

	TimeLayout = "2006-01-02T15:04:05.000Z"
)

// Sample is the typed view of one Trackpoint. A nil field means the
// element was absent in the document.
type Sample struct {
	Time     *time.Time
	Distance *float64
}

type trackpoint struct {
	el       *etree.Element
	time     *etree.Element
	distance *etree.Element
}

// Document is a parsed TCX file. Everything that is not a Time or
// DistanceMeters value is kept as read.
type Document struct {
	doc    *etree.Document
	points []trackpoint
}

func Parse(filename string) (*Document, error) {
	file, err := os.Open(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, filename)
	}

	return ParseReader(file)
}

func ParseReader(r io.Reader) (*Document, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrParse)
	}

	// The declaration is always written fresh on output.
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			doc.RemoveChild(pi)
			break
		}
	}

	d := &Document{doc: doc}
	walk(doc.Root(), func(el *etree.Element) {
		if !isTCX(el, "Trackpoint") {
			return
		}
		d.points = append(d.points, trackpoint{
			el:       el,
			time:     child(el, NamespaceTCX, "Time"),
			distance: child(el, NamespaceTCX, "DistanceMeters"),
		})
	})

	if len(d.points) == 0 {
		return nil, ErrNoTrackpoints
	}

	return d, nil
}

// Len returns the number of trackpoints in document order.
func (d *Document) Len() int {
	return len(d.points)
}

func (d *Document) Samples() ([]Sample, error) {
	samples := make([]Sample, len(d.points))
	for i, tp := range d.points {
		if text := elementText(tp.time); text != "" {
			t, err := ParseTime(text)
			if err != nil {
				return nil, fmt.Errorf("%w: trackpoint %d: %v", ErrParse, i, err)
			}
			samples[i].Time = &t
		}
		if text := elementText(tp.distance); text != "" {
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: trackpoint %d: %v", ErrParse, i, err)
			}
			samples[i].Distance = &v
		}
	}
	return samples, nil
}

// Sport returns the Sport attribute of the first activity, if any.
func (d *Document) Sport() string {
	var sport string
	walk(d.doc.Root(), func(el *etree.Element) {
		if sport == "" && isTCX(el, "Activity") {
			sport = el.SelectAttrValue("Sport", "")
		}
	})
	return sport
}

func (d *Document) Write(filename string) error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filename, b); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, xml.Header)
	if err != nil {
		return int64(n), fmt.Errorf("%w: %v", ErrWrite, err)
	}

	d.doc.Indent(2)
	m, err := d.doc.WriteTo(w)
	if err != nil {
		return int64(n) + m, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return int64(n) + m, nil
}

// Bytes serializes the document the same way WriteTo does.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseTime accepts RFC 3339 timestamps with optional fractional seconds.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

func FormatTime(t time.Time) string {
	return t.UTC().Round(time.Millisecond).Format(TimeLayout)
}

func FormatDistance(meters float64) string {
	return strconv.FormatFloat(meters, 'f', 2, 64)
}

func walk(el *etree.Element, fn func(*etree.Element)) {
	if el == nil {
		return
	}
	fn(el)
	for _, c := range el.ChildElements() {
		walk(c, fn)
	}
}

func isTCX(el *etree.Element, tag string) bool {
	return el.Tag == tag && el.NamespaceURI() == NamespaceTCX
}

func child(el *etree.Element, space, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == space {
			return c
		}
	}
	return nil
}

func elementText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// writeFileAtomic writes into a temp file next to filename and renames it
// into place, so a failed write never leaves a partial file behind.
func writeFileAtomic(filename string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filename)
}
