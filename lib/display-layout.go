package spanninglib

import (
	"fmt"
	"image"
	"regexp"
	"strconv"
	"strings"
)

// Rect is one display in a shared coordinate space.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

// Rectangle converts to an image.Rectangle in the same coordinates.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Layout is a resolved set of displays. All offsets are non-negative.
// Origin is where the primary display's top-left ended up after translation;
// a non-zero Origin means the composite must be wrapped before use.
type Layout struct {
	Displays []Rect
	Origin   image.Point
}

// Bounds is the bounding box of every display, anchored at (0,0).
func (l Layout) Bounds() image.Rectangle {
	w, h := 0, 0
	for _, d := range l.Displays {
		if d.X+d.Width > w {
			w = d.X + d.Width
		}
		if d.Y+d.Height > h {
			h = d.Y + d.Height
		}
	}
	return image.Rect(0, 0, w, h)
}

// NeedsWrap reports whether WrapOutput would change the composite.
func (l Layout) NeedsWrap() bool {
	return l.Origin != image.Point{}
}

// LayoutSource supplies the layout for one iteration.
type LayoutSource interface {
	Layout() (Layout, error)
}

var resolutionRE = regexp.MustCompile(
	`^\s*(\d+)\s*[xX*]\s*(\d+)\s*([+-])\s*(\d+)\s*([+-])\s*(\d+)\s*$`)

// ParseResolution parses specifiers like 1920x1080+0+0 or 1280x1024-1280+0.
func ParseResolution(spec string) (Rect, error) {
	m := resolutionRE.FindStringSubmatch(spec)
	if m == nil {
		return Rect{}, configErrorf(
			"Malformed resolution [%s], expected WIDTHxHEIGHT+X+Y", spec)
	}

	// The regexp only admits digit runs, only overflow can fail here
	var nums [4]int
	for i, s := range []string{m[1], m[2], m[4], m[6]} {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Rect{}, &ConfigError{Msg: "Malformed resolution [" + spec + "]", Err: err}
		}
		nums[i] = n
	}

	r := Rect{Width: nums[0], Height: nums[1], X: nums[2], Y: nums[3]}
	if m[3] == "-" {
		r.X = -r.X
	}
	if m[5] == "-" {
		r.Y = -r.Y
	}

	if r.Width <= 0 || r.Height <= 0 {
		return Rect{}, configErrorf("Resolution [%s] has an empty display", spec)
	}
	return r, nil
}

// ParseResolutions parses every specifier, in order.
func ParseResolutions(specs []string) ([]Rect, error) {
	rects := make([]Rect, 0, len(specs))
	for _, s := range specs {
		// Allow a single argument holding a whitespace separated list
		for _, f := range strings.Fields(s) {
			r, err := ParseResolution(f)
			if err != nil {
				return nil, err
			}
			rects = append(rects, r)
		}
	}
	if len(rects) == 0 {
		return nil, configErrorf("Empty resolution list")
	}
	return rects, nil
}

// ExplicitLayout resolves user-supplied resolution specifiers. Nothing is
// queried from the system.
type ExplicitLayout struct {
	Specs []string
	// Top-left of the primary display, for Windows style layouts
	Primary  *image.Point
	ForceX11 bool
}

func (e ExplicitLayout) Layout() (Layout, error) {
	rects, err := ParseResolutions(e.Specs)
	if err != nil {
		return Layout{}, err
	}
	return resolve(rects, e.Primary, e.ForceX11)
}

// SystemLayout queries the running display server on every call so that
// monitor changes between loop iterations are picked up.
type SystemLayout struct {
	Primary  *image.Point
	ForceX11 bool
}

func (s SystemLayout) Layout() (Layout, error) {
	rects, err := QueryDisplays()
	if err != nil {
		return Layout{}, err
	}
	if len(rects) == 0 {
		return Layout{}, configErrorf(
			"No displays detected, try setting them explicitly with --reslist")
	}
	return resolve(rects, s.Primary, s.ForceX11)
}

func resolve(rects []Rect, primary *image.Point, forceX11 bool) (Layout, error) {
	l, err := ToInternal(rects, primary)
	if err != nil {
		return Layout{}, err
	}
	if forceX11 {
		l.Origin = image.Point{}
	}
	return l, nil
}
