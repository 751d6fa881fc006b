package spanninglib

import (
	"image"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// ToInternal converts raw display rectangles into the internal layout where
// (0,0) is the top-left of the bounding box.
//
// Windows places (0,0) at the primary display's top-left and other displays
// can be negative. Such layouts are shifted so the minimum x and y are 0 and
// Origin records where the primary display's top-left landed. Layouts that
// are already non-negative are kept as-is, with Origin taken from primary.
func ToInternal(raw []Rect, primary *image.Point) (Layout, error) {
	if len(raw) == 0 {
		return Layout{}, configErrorf("No displays to lay out")
	}

	minX, minY := raw[0].X, raw[0].Y
	for _, r := range raw {
		if r.Width <= 0 || r.Height <= 0 {
			return Layout{}, configErrorf("Display [%s] is empty", r)
		}
		if r.X < minX {
			minX = r.X
		}
		if r.Y < minY {
			minY = r.Y
		}
	}

	l := Layout{Displays: make([]Rect, len(raw))}
	copy(l.Displays, raw)

	if minX >= 0 && minY >= 0 {
		if primary != nil {
			if primary.X < 0 || primary.Y < 0 {
				return Layout{}, configErrorf(
					"Primary display offset %d,%d must not be negative for a layout "+
						"with non-negative offsets", primary.X, primary.Y)
			}
			l.Origin = *primary
		}
		return l, nil
	}

	shift := image.Pt(-minX, -minY)
	if minX >= 0 {
		shift.X = 0
	}
	if minY >= 0 {
		shift.Y = 0
	}

	for i := range l.Displays {
		l.Displays[i].X += shift.X
		l.Displays[i].Y += shift.Y
	}
	l.Origin = shift

	if primary != nil && *primary != shift {
		log.Warnf(
			"Primary display offset %d,%d does not match the layout, using %d,%d",
			primary.X, primary.Y, shift.X, shift.Y)
	}

	return l, nil
}

// WrapOutput performs a toroidal shift so that pixel p of the result is pixel
// (p + origin) mod size of img. Tiling the result from the primary display's
// top-left reproduces the intended arrangement.
func WrapOutput(img *image.RGBA, origin image.Point) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	ox := ((origin.X % w) + w) % w
	oy := ((origin.Y % h) + h) % h
	if ox == 0 && oy == 0 {
		return img
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))

	// The origin splits the source into four pieces, copy each one
	pieces := []struct {
		dst image.Point
		src image.Rectangle
	}{
		{image.Pt(0, 0), image.Rect(ox, oy, w, h)},
		{image.Pt(w-ox, 0), image.Rect(0, oy, ox, h)},
		{image.Pt(0, h-oy), image.Rect(ox, 0, w, oy)},
		{image.Pt(w-ox, h-oy), image.Rect(0, 0, ox, oy)},
	}

	for _, p := range pieces {
		if p.src.Empty() {
			continue
		}
		draw.Copy(out, p.dst, img, p.src.Add(b.Min), draw.Src, nil)
	}

	return out
}
