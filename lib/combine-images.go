package spanninglib

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// Mode selects how images are placed.
type Mode int

const (
	// ModeFill scales each image to cover its display and crops the excess.
	ModeFill Mode = iota
	// ModeFit scales each image to fit inside its display and letterboxes.
	ModeFit
	// ModeOneImage stretches a single image across every display.
	ModeOneImage
)

func (m Mode) String() string {
	switch m {
	case ModeFill:
		return "fill"
	case ModeFit:
		return "fit"
	case ModeOneImage:
		return "one-image"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const (
	// DefaultMaxAttempts caps tolerance rejections per display
	DefaultMaxAttempts = 25
	// Scales tried between covering and fitting the bounding box in one-image
	// mode, not counting the covering scale itself
	OneImageScaleSteps = 16
)

// ImageSource hands out candidate images. *ImagePool implements it.
type ImageSource interface {
	Take(accept AcceptFunc, maxAttempts int) (string, error)
}

// Placement records how one image was put on one display. Rectangles are
// relative to the scaled image (Crop) or to the display (Dest). In one-image
// mode Dest is relative to the bounding box.
type Placement struct {
	Display   int
	Path      string
	Source    image.Point
	Scale     float64
	Scaled    image.Point
	Crop      image.Rectangle
	Dest      image.Rectangle
	Uncovered float64
}

// Composite is the finished raster and how it was built.
type Composite struct {
	Image      *image.RGBA
	Placements []Placement
}

// Paths lists the image used on each display, in display order.
func (c *Composite) Paths() []string {
	paths := make([]string, len(c.Placements))
	for i, p := range c.Placements {
		paths[i] = p.Path
	}
	return paths
}

// Compositor builds one composite per call. It holds no per-iteration state.
type Compositor struct {
	Mode Mode
	// Percentage, nil disables the check
	Tolerance       *float64
	Interpolation   int
	FitColor        color.RGBA
	BackgroundColor color.RGBA
	MaxAttempts     int
	Load            func(path string) (image.Image, error)
}

func (c *Compositor) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c *Compositor) withinTolerance(fraction float64) bool {
	if c.Tolerance == nil {
		return true
	}
	// Float noise must not reject exact fits when the tolerance is 0
	return fraction*100 <= *c.Tolerance+1e-9
}

func (c *Compositor) load(path string) (image.Image, error) {
	if c.Load != nil {
		return c.Load(path)
	}
	return LoadImage(path, nil)
}

// Compose picks images from src and lays them out over l.
func (c *Compositor) Compose(l Layout, src ImageSource) (*Composite, error) {
	if len(l.Displays) == 0 {
		return nil, configErrorf("No displays to compose")
	}

	bounds := l.Bounds()
	log.Debugf("Creating a %dx%d image bounding %d displays",
		bounds.Dx(), bounds.Dy(), len(l.Displays))

	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, image.NewUniform(c.BackgroundColor), image.Point{}, draw.Src)

	if c.Mode == ModeOneImage {
		p, err := c.composeOne(canvas, l, src)
		if err != nil {
			return nil, err
		}
		return &Composite{Image: canvas, Placements: []Placement{p}}, nil
	}

	comp := &Composite{Image: canvas}
	for i, d := range l.Displays {
		p, err := c.composeDisplay(canvas, i, d, src)
		if err != nil {
			return nil, err
		}
		comp.Placements = append(comp.Placements, p)
	}
	return comp, nil
}

func (c *Compositor) take(display int, src ImageSource, accept AcceptFunc) (string, error) {
	path, err := src.Take(accept, c.maxAttempts())
	if errors.Is(err, errTooManyAttempts) {
		tol := 0.0
		if c.Tolerance != nil {
			tol = *c.Tolerance
		}
		return "", &ToleranceError{Display: display, Tolerance: tol, Attempts: c.maxAttempts()}
	}
	return path, err
}

func (c *Compositor) composeDisplay(
	canvas *image.RGBA, i int, d Rect, src ImageSource) (Placement, error) {
	var img image.Image
	var p Placement

	accept := func(path string) (bool, error) {
		loaded, err := c.load(path)
		if err != nil {
			return false, err
		}

		b := loaded.Bounds()
		if c.Mode == ModeFit {
			p = FitPlacement(b.Dx(), b.Dy(), d.Width, d.Height)
			// Rounding can make a near match fit exactly, zero means the same ratio
			if c.Tolerance != nil && *c.Tolerance == 0 &&
				b.Dx()*d.Height != b.Dy()*d.Width {
				log.Debugf("Aspect ratio of [%s] does not match display %d, rejecting it",
					path, i)
				return false, nil
			}
			if !c.withinTolerance(p.Uncovered) {
				log.Debugf("Uncovered area is %.1f%%, rejecting [%s] for display %d",
					p.Uncovered*100, path, i)
				return false, nil
			}
		} else {
			p = FillPlacement(b.Dx(), b.Dy(), d.Width, d.Height)
		}

		img = loaded
		return true, nil
	}

	path, err := c.take(i, src, accept)
	if err != nil {
		return Placement{}, err
	}
	p.Display = i
	p.Path = path
	log.Debugf("Image for display %d (%s) is [%s]", i, d, path)

	// Only the cropped part is ever scaled, the full scaled size is unbounded
	// for extreme aspect ratios
	scaled := ResampleRegion(img, p.Scaled.X, p.Scaled.Y, p.Crop, c.Interpolation)
	sb := scaled.Bounds()
	dr := d.Rectangle()

	if c.Mode == ModeFit {
		draw.Draw(canvas, dr, image.NewUniform(c.FitColor), image.Point{}, draw.Src)
	}
	draw.Draw(canvas, p.Dest.Add(dr.Min), scaled, sb.Min, draw.Src)
	return p, nil
}

func (c *Compositor) composeOne(
	canvas *image.RGBA, l Layout, src ImageSource) (Placement, error) {
	cov := rasterizeCoverage(l)
	bounds := l.Bounds()

	var img image.Image
	var p Placement

	accept := func(path string) (bool, error) {
		loaded, err := c.load(path)
		if err != nil {
			return false, err
		}

		b := loaded.Bounds()
		candidate, ok := c.oneImagePlacement(b.Dx(), b.Dy(), bounds, cov)
		if !ok {
			log.Debugf("No scale of [%s] keeps enough of it on the displays", path)
			return false, nil
		}

		p = candidate
		img = loaded
		return true, nil
	}

	path, err := c.take(0, src, accept)
	if err != nil {
		return Placement{}, err
	}
	p.Path = path
	log.Debugf("Image spanning every display is [%s], %.1f%% of it falls outside",
		path, p.Uncovered*100)

	// Parts of the image outside the bounding box are never scaled
	visible := p.Dest.Intersect(bounds)
	scaled := ResampleRegion(
		img, p.Scaled.X, p.Scaled.Y, visible.Sub(p.Dest.Min), c.Interpolation)
	sb := scaled.Bounds()

	// Only display areas receive the image, the rest keeps the background
	for _, d := range l.Displays {
		draw.Draw(canvas, d.Rectangle(), image.NewUniform(c.FitColor), image.Point{}, draw.Src)
	}
	for _, d := range l.Displays {
		r := d.Rectangle().Intersect(visible)
		if r.Empty() {
			continue
		}
		draw.Draw(canvas, r, scaled, sb.Min.Add(r.Min.Sub(visible.Min)), draw.Src)
	}
	return p, nil
}

// Starts from the scale covering the whole bounding box and shrinks toward
// the scale that fits inside it until the share of the image landing outside
// every display is within tolerance.
func (c *Compositor) oneImagePlacement(
	iw, ih int, bounds image.Rectangle, cov *coverage) (Placement, bool) {
	bw, bh := bounds.Dx(), bounds.Dy()
	cover := math.Max(float64(bw)/float64(iw), float64(bh)/float64(ih))
	contain := math.Min(float64(bw)/float64(iw), float64(bh)/float64(ih))

	prev := image.Point{}
	for k := 0; k <= OneImageScaleSteps; k++ {
		var size image.Point
		switch k {
		case 0:
			size = FillPlacement(iw, ih, bw, bh).Scaled
		case OneImageScaleSteps:
			size = FitPlacement(iw, ih, bw, bh).Scaled
		default:
			s := cover - (cover-contain)*float64(k)/OneImageScaleSteps
			size = image.Pt(
				maxInt(1, roundHalfUp(float64(iw)*s)),
				maxInt(1, roundHalfUp(float64(ih)*s)))
		}
		if size == prev {
			continue
		}
		prev = size

		tl := image.Pt(
			roundHalfUp(float64(bw-size.X)/2),
			roundHalfUp(float64(bh-size.Y)/2))
		dest := image.Rectangle{Min: tl, Max: tl.Add(size)}

		area := size.X * size.Y
		outside := float64(area-cov.count(dest)) / float64(area)

		if c.withinTolerance(outside) {
			return Placement{
				Source:    image.Pt(iw, ih),
				Scale:     float64(size.X) / float64(iw),
				Scaled:    size,
				Dest:      dest,
				Uncovered: outside,
			}, true
		}
	}
	return Placement{}, false
}

// FillPlacement scales an iw x ih image to cover a dw x dh display,
// preserving the aspect ratio, and centers the crop.
func FillPlacement(iw, ih, dw, dh int) Placement {
	// Match the height first, fall back to matching the width
	sw := roundHalfUp(float64(iw) * float64(dh) / float64(ih))
	sh := dh
	if sw < dw {
		sw = dw
		sh = roundHalfUp(float64(ih) * float64(dw) / float64(iw))
	}
	sw, sh = maxInt(sw, dw), maxInt(sh, dh)

	cx := roundHalfUp(float64(sw-dw) / 2)
	cy := roundHalfUp(float64(sh-dh) / 2)

	return Placement{
		Source:    image.Pt(iw, ih),
		Scale:     float64(sw) / float64(iw),
		Scaled:    image.Pt(sw, sh),
		Crop:      image.Rect(cx, cy, cx+dw, cy+dh),
		Dest:      image.Rect(0, 0, dw, dh),
		Uncovered: 0,
	}
}

// FitPlacement scales an iw x ih image to fit inside a dw x dh display,
// preserving the aspect ratio, and centers it. Uncovered is the fraction of
// the display left for the fill colour.
func FitPlacement(iw, ih, dw, dh int) Placement {
	sw := roundHalfUp(float64(iw) * float64(dh) / float64(ih))
	sh := dh
	if sw > dw {
		sw = dw
		sh = roundHalfUp(float64(ih) * float64(dw) / float64(iw))
	}
	sw = clampInt(sw, 1, dw)
	sh = clampInt(sh, 1, dh)

	ox := roundHalfUp(float64(dw-sw) / 2)
	oy := roundHalfUp(float64(dh-sh) / 2)

	displayArea := dw * dh
	return Placement{
		Source:    image.Pt(iw, ih),
		Scale:     float64(sw) / float64(iw),
		Scaled:    image.Pt(sw, sh),
		Crop:      image.Rect(0, 0, sw, sh),
		Dest:      image.Rect(ox, oy, ox+sw, oy+sh),
		Uncovered: float64(displayArea-sw*sh) / float64(displayArea),
	}
}

// Covered is the number of display pixels the image occupies.
func (p Placement) Covered() int {
	return p.Dest.Dx() * p.Dest.Dy()
}

// coverage is a rasterized union of displays over the bounding box, stored
// as per-row prefix sums. Rows with identical coverage share storage.
type coverage struct {
	width int
	rows  [][]int32
}

func rasterizeCoverage(l Layout) *coverage {
	b := l.Bounds()
	cov := &coverage{width: b.Dx(), rows: make([][]int32, b.Dy())}

	mask := make([]bool, b.Dx())
	var prevMask []bool
	for y := 0; y < b.Dy(); y++ {
		for x := range mask {
			mask[x] = false
		}
		for _, d := range l.Displays {
			if y < d.Y || y >= d.Y+d.Height {
				continue
			}
			for x := d.X; x < d.X+d.Width; x++ {
				mask[x] = true
			}
		}

		if prevMask != nil && sameMask(mask, prevMask) {
			cov.rows[y] = cov.rows[y-1]
			continue
		}

		prefix := make([]int32, b.Dx()+1)
		for x, on := range mask {
			prefix[x+1] = prefix[x]
			if on {
				prefix[x+1]++
			}
		}
		cov.rows[y] = prefix
		if prevMask == nil {
			prevMask = make([]bool, len(mask))
		}
		copy(prevMask, mask)
	}
	return cov
}

// Counts display pixels inside r.
func (c *coverage) count(r image.Rectangle) int {
	r = r.Intersect(image.Rect(0, 0, c.width, len(c.rows)))
	total := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := c.rows[y]
		total += int(row[r.Max.X] - row[r.Min.X])
	}
	return total
}

func sameMask(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
