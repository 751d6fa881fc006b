package spanninglib

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Interpolation orders run from fastest to highest quality.
const (
	MinInterpolation     = 0
	MaxInterpolation     = 5
	DefaultInterpolation = 3
)

var interpolationFilters = [...]imaging.ResampleFilter{
	imaging.NearestNeighbor,
	imaging.Linear,
	imaging.MitchellNetravali,
	imaging.CatmullRom,
	imaging.BSpline,
	imaging.Lanczos,
}

func interpolationFilter(order int) imaging.ResampleFilter {
	if order < MinInterpolation || order > MaxInterpolation {
		order = DefaultInterpolation
	}
	return interpolationFilters[order]
}

// Resample scales img to exactly width x height. Images already at that
// size are returned untouched.
func Resample(img image.Image, width, height, order int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	log.Debugf("Scaling %dx%d image to %dx%d with interpolation order %d",
		b.Dx(), b.Dy(), width, height, order)
	return imaging.Resize(img, width, height, interpolationFilter(order))
}

// LoadImage decodes the file at path into an opaque image. Formats Go cannot
// decode are converted with ImageMagick first, when it is configured. Every
// failure is returned as an *UnreadableImageError.
func LoadImage(path string, c *Config) (image.Image, error) {
	img, err := decodeFile(path)
	if err == nil {
		return flatten(img), nil
	}
	if !errors.Is(err, image.ErrFormat) && !errors.Is(err, bmp.ErrUnsupported) {
		return nil, &UnreadableImageError{Path: path, Err: err}
	}
	if c == nil || c.ImageMagick == "" {
		return nil, &UnreadableImageError{Path: path, Err: err}
	}

	converted, cerr := convertWithImageMagick(path, c)
	if cerr != nil {
		return nil, &UnreadableImageError{Path: path, Err: cerr}
	}

	img, err = decodeFile(converted)
	if err != nil {
		return nil, &UnreadableImageError{Path: path, Err: err}
	}
	return flatten(img), nil
}

type opaquer interface {
	Opaque() bool
}

// Transparent pixels would punch holes in the background, composite them
// over black instead.
func flatten(img image.Image) image.Image {
	if o, ok := img.(opaquer); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	return imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.Black), img, image.Point{}, 1.0)
}

// ResampleRegion scales img as if to width x height and returns only the part
// inside region, which is in scaled coordinates. Only the matching source
// pixels are resampled so the full scaled image is never allocated.
func ResampleRegion(img image.Image, width, height int, region image.Rectangle, order int) image.Image {
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	region = region.Intersect(image.Rect(0, 0, width, height))
	if region.Empty() {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}

	src := image.Rect(
		region.Min.X*iw/width,
		region.Min.Y*ih/height,
		ceilDiv(region.Max.X*iw, width),
		ceilDiv(region.Max.Y*ih, height))
	// At least one source pixel in each direction
	if src.Dx() < 1 {
		src.Max.X = src.Min.X + 1
	}
	if src.Dy() < 1 {
		src.Max.Y = src.Min.Y + 1
	}
	src = src.Intersect(image.Rect(0, 0, iw, ih))

	if src.Dx() == iw && src.Dy() == ih {
		return Resample(img, region.Dx(), region.Dy(), order)
	}
	return Resample(imaging.Crop(img, src.Add(b.Min)), region.Dx(), region.Dy(), order)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func decodeFile(path string) (image.Image, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, errors.New("not a regular file")
	}

	img, _, err := image.Decode(in)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("image has no pixels")
	}
	return img, nil
}

// Go has rather limited image format support, ImageMagick covers the rest
func convertWithImageMagick(inFile string, c *Config) (string, error) {
	tdir, err := TempDir(c)
	if err != nil {
		return "", err
	}

	convertedFile := filepath.Join(tdir, hashPath(inFile)+"-converted.png")

	// File might already exist from an earlier iteration
	should, err := ShouldProcessImage(inFile, convertedFile)
	if err != nil {
		return "", err
	}
	if !should {
		return convertedFile, nil
	}

	args := append(getBaseConvertArgs(c),
		// Only the first page or frame of multi-image formats
		inFile+"[0]",
		"-flatten",
		convertedFile)

	cmd := exec.Command(c.ImageMagick, args...)
	cmd.SysProcAttr = sysProcAttr
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.New(strings.TrimSpace(string(out)) + " " + err.Error())
	}
	return convertedFile, nil
}

func getBaseConvertArgs(c *Config) []string {
	args := []string{}
	if c.ImageMagick7 {
		args = []string{"convert"}
	}
	return args
}

// Returns true if outFile doesn't exist or if inFile was modified more recently
func ShouldProcessImage(inFile, outFile string) (bool, error) {
	ofi, err := os.Stat(outFile)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}

	ifi, err := os.Stat(inFile)
	if err != nil {
		return false, err
	}

	return ofi.ModTime().Before(ifi.ModTime()), nil
}

// Used to avoid collisions when creating temporary files
func hashPath(path string) string {
	h := sha256.Sum256([]byte(path))
	return hex.EncodeToString(h[:])
}

type encoder func(io.Writer, image.Image) error

func encoderFor(path string) encoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode
	case ".jpg", ".jpeg", ".jpe":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
		}
	case ".gif":
		return func(w io.Writer, img image.Image) error {
			return gif.Encode(w, img, nil)
		}
	case ".bmp", ".dib":
		return bmp.Encode
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	}
	return nil
}

// CanEncode reports whether SaveImage supports the extension of path.
func CanEncode(path string) bool {
	return encoderFor(path) != nil
}

// SaveImage writes img to path in the format implied by its extension.
// The file is written next to path and renamed over it, so a failed write
// never leaves a partial image behind.
func SaveImage(img image.Image, path string) error {
	enc := encoderFor(path)
	if enc == nil {
		return configErrorf("No image encoder for [%s]", path)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".*"+filepath.Ext(path))
	if err != nil {
		return &OutputError{Path: path, Err: err}
	}
	tmp := f.Name()

	err = f.Chmod(0644)
	if err == nil {
		err = enc(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		// Renaming should be atomic enough for our purposes
		err = os.Rename(tmp, path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return &OutputError{Path: path, Err: err}
	}
	return nil
}
