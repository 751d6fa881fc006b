package spanninglib

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillPlacement_CoversDisplay(t *testing.T) {
	for _, c := range []struct{ iw, ih, dw, dh int }{
		{400, 300, 1920, 1080},
		{300, 400, 1920, 1080},
		{500, 100, 1280, 1024},
		{1, 1, 1920, 1080},
		{1920, 1080, 1920, 1080},
		{1921, 1080, 1920, 1080},
		{7, 3000, 800, 600},
	} {
		p := FillPlacement(c.iw, c.ih, c.dw, c.dh)
		assert.Equal(t, c.dw, p.Crop.Dx(), "%+v", c)
		assert.Equal(t, c.dh, p.Crop.Dy(), "%+v", c)
		assert.True(t, p.Crop.In(image.Rect(0, 0, p.Scaled.X, p.Scaled.Y)), "%+v: %v", c, p)
		assert.Zero(t, p.Uncovered)
	}
}

func TestFillPlacement_Centered(t *testing.T) {
	// 400x300 on 1920x1080 matches the width: 1920x1440, 360 cropped off
	// top and bottom
	p := FillPlacement(400, 300, 1920, 1080)
	assert.Equal(t, image.Pt(1920, 1440), p.Scaled)
	assert.Equal(t, image.Rect(0, 180, 1920, 1260), p.Crop)
}

func TestFitPlacement_AreaAccounting(t *testing.T) {
	for _, c := range []struct{ iw, ih, dw, dh int }{
		{400, 300, 1920, 1080},
		{300, 400, 1920, 1080},
		{500, 100, 1280, 1024},
		{800, 600, 800, 600},
		{1, 5000, 800, 600},
		{5000, 1, 800, 600},
	} {
		p := FitPlacement(c.iw, c.ih, c.dw, c.dh)
		area := c.dw * c.dh
		assert.True(t, p.Dest.In(image.Rect(0, 0, c.dw, c.dh)), "%+v: %v", c, p.Dest)
		filled := area - p.Covered()
		assert.Equal(t, area, p.Covered()+filled)
		assert.InDelta(t, float64(filled)/float64(area), p.Uncovered, 1e-12, "%+v", c)
	}

	p := FitPlacement(800, 600, 800, 600)
	assert.Zero(t, p.Uncovered)
	assert.Equal(t, image.Rect(0, 0, 800, 600), p.Dest)
}

func TestCompose_FillTwoDisplays(t *testing.T) {
	dir := t.TempDir()
	inputs := map[string]bool{
		writePNG(t, dir, "wide.png", 500, 100, red):  true,
		writePNG(t, dir, "tall.png", 300, 400, green): true,
		writePNG(t, dir, "std.png", 400, 300, blue):  true,
	}

	pool, err := NewImagePool([]string{dir}, false, false)
	require.NoError(t, err)

	l, err := ExplicitLayout{Specs: []string{"1920x1080+0+0", "1280x1024+1920+0"}}.Layout()
	require.NoError(t, err)

	comp := &Compositor{
		Mode:            ModeFill,
		FitColor:        black,
		BackgroundColor: white,
	}
	out, err := comp.Compose(l, pool)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 3200, 1080), out.Image.Bounds())
	for _, d := range l.Displays {
		assert.Zero(t, countColor(out.Image, d.Rectangle(), black), "display %s", d)
	}
	// Below the shorter display is outside every display
	assert.Equal(t, 1280*56, countColor(out.Image, image.Rect(1920, 1024, 3200, 1080), white))

	paths := out.Paths()
	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0], paths[1])
	for _, p := range paths {
		assert.True(t, inputs[p], "%s was not an input", p)
	}
}

func TestCompose_FitLetterboxes(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 400, 300, red)

	pool, err := NewImagePool([]string{dir}, false, true)
	require.NoError(t, err)

	fitColor := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	comp := &Compositor{Mode: ModeFit, FitColor: fitColor, BackgroundColor: white}
	l := Layout{Displays: []Rect{{X: 0, Y: 0, Width: 1000, Height: 500}}}

	out, err := comp.Compose(l, pool)
	require.NoError(t, err)

	p := out.Placements[0]
	assert.Equal(t, image.Pt(667, 500), p.Scaled)
	assert.Equal(t, image.Rect(167, 0, 834, 500), p.Dest)

	dr := l.Displays[0].Rectangle()
	covered := countColor(out.Image, dr, red)
	filled := countColor(out.Image, dr, fitColor)
	assert.Equal(t, p.Covered(), covered)
	assert.Equal(t, 1000*500, covered+filled)
}

func TestCompose_FitZeroTolerance(t *testing.T) {
	l := Layout{Displays: []Rect{{X: 0, Y: 0, Width: 800, Height: 600}}}

	t.Run("exact aspect ratio", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, dir, "a.png", 400, 300, red)
		pool, err := NewImagePool([]string{dir}, false, false)
		require.NoError(t, err)

		comp := &Compositor{Mode: ModeFit, Tolerance: tolerance(0), FitColor: black}
		out, err := comp.Compose(l, pool)
		require.NoError(t, err)
		assert.Zero(t, countColor(out.Image, out.Image.Bounds(), black))
	})

	t.Run("other aspect ratio", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, dir, "a.png", 400, 301, red)
		pool, err := NewImagePool([]string{dir}, false, false)
		require.NoError(t, err)

		comp := &Compositor{Mode: ModeFit, Tolerance: tolerance(0), FitColor: black}
		_, err = comp.Compose(l, pool)
		var te *ToleranceError
		require.True(t, errors.As(err, &te), "got %v", err)
		assert.Equal(t, 0, te.Display)
	})

	t.Run("ratio that only rounds to a fit", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, dir, "a.png", 1601, 1200, red)
		pool, err := NewImagePool([]string{dir}, false, false)
		require.NoError(t, err)

		require.Zero(t, FitPlacement(1601, 1200, 800, 600).Uncovered)

		comp := &Compositor{Mode: ModeFit, Tolerance: tolerance(0)}
		_, err = comp.Compose(l, pool)
		var te *ToleranceError
		require.True(t, errors.As(err, &te), "got %v", err)
	})

	t.Run("second image fits", func(t *testing.T) {
		dir := t.TempDir()
		writePNG(t, dir, "a.png", 300, 400, red)
		writePNG(t, dir, "b.png", 40, 30, green)
		pool, err := NewImagePool([]string{dir}, false, true)
		require.NoError(t, err)

		comp := &Compositor{Mode: ModeFit, Tolerance: tolerance(0)}
		out, err := comp.Compose(l, pool)
		require.NoError(t, err)
		assert.Equal(t, 800*600, countColor(out.Image, out.Image.Bounds(), green))
		// The rejected image is still available
		assert.Equal(t, 1, pool.Remaining())
	})
}

func TestCompose_FitToleranceReportsDisplay(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", 400, 300, red)
	b := writePNG(t, dir, "b.png", 100, 400, red)

	l := Layout{Displays: []Rect{
		{X: 0, Y: 0, Width: 800, Height: 600},
		{X: 800, Y: 0, Width: 800, Height: 600},
	}}
	comp := &Compositor{Mode: ModeFit, Tolerance: tolerance(5), MaxAttempts: 3}
	_, err := comp.Compose(l, &sliceSource{paths: []string{a, b, b, b}})

	var te *ToleranceError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, 1, te.Display)
	assert.Equal(t, 3, te.Attempts)
}

func TestCompose_SkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "broken.png")
	good := writePNG(t, dir, "good.png", 16, 9, red)

	pool, err := NewImagePool([]string{dir}, false, true)
	require.NoError(t, err)

	comp := &Compositor{Mode: ModeFill}
	out, err := comp.Compose(Layout{Displays: []Rect{{Width: 32, Height: 18}}}, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{good}, out.Paths())
}

func TestCompose_OneImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 400, 100, red)

	pool, err := NewImagePool([]string{dir}, false, false)
	require.NoError(t, err)

	l, err := ExplicitLayout{Specs: []string{"100x50+0+0", "100x50+100+0"}}.Layout()
	require.NoError(t, err)

	comp := &Compositor{Mode: ModeOneImage, Tolerance: tolerance(0)}
	out, err := comp.Compose(l, pool)
	require.NoError(t, err)

	require.Len(t, out.Placements, 1)
	p := out.Placements[0]
	assert.Equal(t, image.Pt(200, 50), p.Scaled)
	assert.Zero(t, p.Uncovered)
	assert.Equal(t, 200*50, countColor(out.Image, out.Image.Bounds(), red))
}

func TestCompose_OneImageIrregularLayout(t *testing.T) {
	// L shaped: a quarter of the bounding box is outside every display
	l := Layout{Displays: []Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 100, Y: 0, Width: 100, Height: 50},
	}}

	dir := t.TempDir()
	writePNG(t, dir, "a.png", 200, 100, red)

	t.Run("within tolerance", func(t *testing.T) {
		pool, err := NewImagePool([]string{dir}, false, false)
		require.NoError(t, err)

		fitColor := color.RGBA{R: 1, G: 2, B: 3, A: 255}
		comp := &Compositor{
			Mode:            ModeOneImage,
			Tolerance:       tolerance(30),
			FitColor:        fitColor,
			BackgroundColor: white,
		}
		out, err := comp.Compose(l, pool)
		require.NoError(t, err)

		p := out.Placements[0]
		assert.InDelta(t, 0.25, p.Uncovered, 1e-12)
		assert.Equal(t, 15000, countColor(out.Image, out.Image.Bounds(), red))
		assert.Equal(t, 5000, countColor(out.Image, out.Image.Bounds(), white))
		assert.Zero(t, countColor(out.Image, out.Image.Bounds(), fitColor))
	})

	t.Run("outside tolerance", func(t *testing.T) {
		pool, err := NewImagePool([]string{dir}, false, false)
		require.NoError(t, err)

		comp := &Compositor{Mode: ModeOneImage, Tolerance: tolerance(10)}
		_, err = comp.Compose(l, pool)
		var te *ToleranceError
		require.True(t, errors.As(err, &te), "got %v", err)
	})
}

func TestCompose_OneImageShrinks(t *testing.T) {
	l := Layout{Displays: []Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 100, Y: 0, Width: 100, Height: 50},
	}}

	dir := t.TempDir()
	writePNG(t, dir, "a.png", 400, 100, red)

	pool, err := NewImagePool([]string{dir}, false, false)
	require.NoError(t, err)

	comp := &Compositor{Mode: ModeOneImage}
	out, err := comp.Compose(l, pool)
	require.NoError(t, err)

	// No tolerance keeps the covering scale
	p := out.Placements[0]
	assert.Equal(t, image.Pt(400, 100), p.Scaled)
	assert.Equal(t, image.Rect(-100, 0, 300, 100), p.Dest)
	assert.InDelta(t, 0.625, p.Uncovered, 1e-12)

	// The fitting scale leaves a quarter outside, so 30% is reachable
	pool, err = NewImagePool([]string{dir}, false, false)
	require.NoError(t, err)
	comp.Tolerance = tolerance(30)
	out, err = comp.Compose(l, pool)
	require.NoError(t, err)
	p = out.Placements[0]
	assert.LessOrEqual(t, p.Uncovered, 0.3)
	assert.Less(t, p.Scaled.X, 400)
}

func TestCoverage(t *testing.T) {
	l := Layout{Displays: []Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 100, Y: 0, Width: 100, Height: 50},
		// Overlaps the first one
		{X: 50, Y: 50, Width: 20, Height: 20},
	}}
	cov := rasterizeCoverage(l)

	assert.Equal(t, 15000, cov.count(l.Bounds()))
	assert.Equal(t, 0, cov.count(image.Rect(100, 50, 200, 100)))
	// Straddles the inner corner of the L
	assert.Equal(t, 75, cov.count(image.Rect(95, 45, 105, 55)))
	// Clipped to the bounding box
	assert.Equal(t, 15000, cov.count(image.Rect(-50, -50, 500, 500)))
}

func TestCompose_BackgroundOutsideDisplays(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 20, 20, red)

	pool, err := NewImagePool([]string{dir}, false, false)
	require.NoError(t, err)

	l := Layout{Displays: []Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 10, Y: 0, Width: 10, Height: 5},
	}}
	comp := &Compositor{Mode: ModeFill, BackgroundColor: blue}
	out, err := comp.Compose(l, pool)
	require.NoError(t, err)

	assert.Equal(t, 50, countColor(out.Image, image.Rect(10, 5, 20, 10), blue))
	assert.Equal(t, 150, countColor(out.Image, out.Image.Bounds(), red))
}

func TestCompose_TransparentInputIsOpaque(t *testing.T) {
	for name, c := range map[string]color.RGBA{
		"clear.png": {},
		"half.png":  {R: 128, A: 128},
	} {
		dir := t.TempDir()
		writePNG(t, dir, name, 40, 30, c)

		pool, err := NewImagePool([]string{dir}, false, false)
		require.NoError(t, err)

		comp := &Compositor{Mode: ModeFill, BackgroundColor: white}
		out, err := comp.Compose(Layout{Displays: []Rect{{Width: 80, Height: 60}}}, pool)
		require.NoError(t, err)

		img := out.Image
		for i := 3; i < len(img.Pix); i += 4 {
			require.Equal(t, uint8(255), img.Pix[i], "%s: pixel %d", name, i/4)
		}
	}
}

func TestCompose_ExtremeAspectRatios(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "sliver.png", 1, 2000, red)

	// Scaling the whole image to cover 1920x1080 would be 1920x3840000
	require.Equal(t, image.Pt(1920, 3840000), FillPlacement(1, 2000, 1920, 1080).Scaled)

	pool, err := NewImagePool([]string{dir}, false, false)
	require.NoError(t, err)

	l := Layout{Displays: []Rect{{Width: 1920, Height: 1080}}}
	out, err := (&Compositor{Mode: ModeFill}).Compose(l, pool)
	require.NoError(t, err)
	assert.Equal(t, 1920*1080, countColor(out.Image, out.Image.Bounds(), red))

	l = Layout{Displays: []Rect{{Width: 100, Height: 50}, {X: 100, Width: 100, Height: 50}}}
	out, err = (&Compositor{Mode: ModeOneImage}).Compose(l, pool)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(200, 400000), out.Placements[0].Scaled)
	assert.Equal(t, 200*50, countColor(out.Image, out.Image.Bounds(), red))
}
