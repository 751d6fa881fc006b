package spanninglib

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/awused/awconf"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// ConfigName is the name awconf searches for, e.g.
// $XDG_CONFIG_HOME/spanning-background/spanning-background.toml
const ConfigName = "spanning-background"

type Config struct {
	// Image files and directories, in order
	Inputs     []string
	OutputFile string
	// Receives the paths of the images used in the latest iteration
	LogCurrent string
	// Diagnostics go here instead of stderr when set
	LogFile string
	Verbose bool
	// fill, fit or oneimage
	Mode            string
	FitColor        []int
	BackgroundColor []int
	// Minutes between iterations, 0 runs once
	Interval float64
	// Percentage of allowed uncovered area, unset means anything goes
	Tolerance     *float64
	Interpolation int
	Sequential    bool
	Recursive     bool
	NoClobber     bool
	DontApply     bool
	// Explicit displays, WIDTHxHEIGHT+X+Y
	ResList []string
	// Top-left of the Windows primary display, X then Y
	WindowsOrigin []int
	ForceX11      bool
	MaxAttempts   int
	TempDirectory string
	ImageMagick   string
	ImageMagick7  bool

	mode     Mode
	fitColor color.RGBA
	bgColor  color.RGBA
	primary  *image.Point
}

// DefaultConfig has every default that isn't a zero value.
func DefaultConfig() *Config {
	return &Config{
		Mode:            "fill",
		FitColor:        []int{0, 0, 0},
		BackgroundColor: []int{0, 0, 0},
		Interpolation:   DefaultInterpolation,
		MaxAttempts:     DefaultMaxAttempts,
		ImageMagick:     "convert",
	}
}

// LoadConfig applies a config file on top of the defaults. An explicit path
// must exist; otherwise awconf looks in the usual places and a missing file
// just leaves the defaults.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, &ConfigError{Msg: "Error reading config [" + path + "]", Err: err}
		}
		return c, nil
	}

	err := awconf.LoadConfig(ConfigName, c)
	if err != nil && err.Error() == errNoConfigFile.Error() {
		log.Debugf("No config file loaded: %s", err)
		return c, nil
	}
	if err != nil {
		return nil, &ConfigError{Msg: "Error reading config", Err: err}
	}
	return c, nil
}

// What awconf returns when none of its search paths exist
var errNoConfigFile = errors.New("Unable to find config file for " + ConfigName)

// Validate checks every setting and resolves the derived values. All problems
// are reported at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if err := c.validateOutput(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if len(c.Inputs) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("No image files or directories given"))
	}

	switch strings.ToLower(c.Mode) {
	case "", "fill":
		c.mode = ModeFill
	case "fit", "fitimage":
		c.mode = ModeFit
	case "oneimage", "one-image", "one":
		c.mode = ModeOneImage
	default:
		errs = multierror.Append(errs, fmt.Errorf("Unknown Mode [%s]", c.Mode))
	}

	var err error
	if c.fitColor, err = colorFromInts(c.FitColor); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("FitColor: %w", err))
	}
	if c.bgColor, err = colorFromInts(c.BackgroundColor); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("BackgroundColor: %w", err))
	}

	if c.Interval < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Interval must not be negative"))
	}

	if c.Tolerance != nil && *c.Tolerance < 0 {
		errs = multierror.Append(errs, fmt.Errorf("Tolerance must not be negative"))
	}

	if c.Interpolation < MinInterpolation || c.Interpolation > MaxInterpolation {
		errs = multierror.Append(errs, fmt.Errorf(
			"Interpolation order %d is not in the range %d-%d",
			c.Interpolation, MinInterpolation, MaxInterpolation))
	}

	if c.MaxAttempts < 0 {
		errs = multierror.Append(errs, fmt.Errorf("MaxAttempts must not be negative"))
	}

	errs = c.validateDisplays(errs)

	if c.TempDirectory != "" {
		fi, err := os.Stat(c.TempDirectory)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else if !fi.IsDir() {
			errs = multierror.Append(errs, fmt.Errorf(
				"TempDirectory [%s] is not a directory", c.TempDirectory))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return &ConfigError{Msg: "Invalid configuration", Err: err}
	}
	return nil
}

// ValidateDisplays checks only the settings LayoutSource needs.
func (c *Config) ValidateDisplays() error {
	if err := c.validateDisplays(nil).ErrorOrNil(); err != nil {
		return &ConfigError{Msg: "Invalid configuration", Err: err}
	}
	return nil
}

func (c *Config) validateDisplays(errs *multierror.Error) *multierror.Error {
	c.primary = nil
	switch len(c.WindowsOrigin) {
	case 0:
	case 2:
		c.primary = &image.Point{X: c.WindowsOrigin[0], Y: c.WindowsOrigin[1]}
	default:
		errs = multierror.Append(errs, fmt.Errorf(
			"WindowsOrigin needs exactly two values, got %d", len(c.WindowsOrigin)))
	}

	if len(c.ResList) != 0 {
		if _, err := ParseResolutions(c.ResList); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (c *Config) validateOutput() error {
	if c.OutputFile == "" {
		return fmt.Errorf("Config missing OutputFile")
	}

	abs, err := processPath(c.OutputFile)
	if err != nil {
		return err
	}
	c.OutputFile = abs

	if !CanEncode(abs) {
		return fmt.Errorf(
			"OutputFile [%s] does not have a recognized image suffix", abs)
	}

	fi, err := os.Stat(filepath.Dir(abs))
	if err != nil || !fi.IsDir() {
		return fmt.Errorf(
			"The directory for OutputFile [%s] does not exist", abs)
	}

	fi, err = os.Stat(abs)
	if err == nil && !fi.Mode().IsRegular() {
		return fmt.Errorf("OutputFile [%s] exists but is not a file", abs)
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("Error calling os.Stat on OutputFile [%s]: %s", abs, err)
	}

	if c.LogCurrent != "" {
		if c.LogCurrent, err = processPath(c.LogCurrent); err != nil {
			return err
		}
		if fi, err := os.Stat(c.LogCurrent); err == nil && fi.IsDir() {
			return fmt.Errorf("LogCurrent [%s] is a directory", c.LogCurrent)
		}
	}
	return nil
}

// Compositor builds the compositor described by a validated config.
func (c *Config) Compositor() *Compositor {
	return &Compositor{
		Mode:            c.mode,
		Tolerance:       c.Tolerance,
		Interpolation:   c.Interpolation,
		FitColor:        c.fitColor,
		BackgroundColor: c.bgColor,
		MaxAttempts:     c.MaxAttempts,
		Load: func(path string) (image.Image, error) {
			return LoadImage(path, c)
		},
	}
}

// LayoutSource picks explicit or queried displays.
func (c *Config) LayoutSource() LayoutSource {
	if len(c.ResList) != 0 {
		return ExplicitLayout{Specs: c.ResList, Primary: c.primary, ForceX11: c.ForceX11}
	}
	return SystemLayout{Primary: c.primary, ForceX11: c.ForceX11}
}

func colorFromInts(v []int) (color.RGBA, error) {
	if len(v) != 3 {
		return color.RGBA{}, fmt.Errorf("expected 3 values, got %d", len(v))
	}
	for _, n := range v {
		if n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("value %d is not in the range 0-255", n)
		}
	}
	return color.RGBA{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2]), A: 255}, nil
}

// ParseInts splits "0,0,0" or "0 0 0" into integers.
func ParseInts(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("Invalid integer [%s] in [%s]", f, s)
		}
		out[i] = n
	}
	return out, nil
}

var tempDir string
var tempErr error
var tempOnce sync.Once

func TempDir(c *Config) (string, error) {
	tempOnce.Do(func() {
		dir := ""
		if c != nil {
			dir = c.TempDirectory
		}
		tempDir, tempErr = os.MkdirTemp(dir, "spanning-background")
	})

	return tempDir, tempErr
}

// Be sure to defer Cleanup() in main
func Cleanup() error {
	// tempDir is private and can't be set outside of this package
	if tempDir != "" {
		return os.RemoveAll(tempDir)
	}
	return nil
}
