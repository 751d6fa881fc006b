package main

import (
	"context"
	"errors"
	"fmt"

	lib "github.com/awused/spanning-background/lib"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	configFlag        = "config"
	outfileFlag       = "outfile"
	verboseFlag       = "verbose"
	oneImageFlag      = "oneimage"
	fitImageFlag      = "fitimage"
	timeDelayFlag     = "timedelay"
	percentErrorFlag  = "percenterror"
	zoomSplineFlag    = "zoomspline"
	sequentialFlag    = "sequential"
	colorFillFlag     = "colorfill"
	recursiveFlag     = "recursive"
	dontApplyFlag     = "dontapply"
	noClobberFlag     = "noclobber"
	resListFlag       = "reslist"
	windowsFlag       = "windows"
	x11Flag           = "x11"
	logCurrentFlag    = "logcurrent"
	maxAttemptsFlag   = "max-attempts"
	tempDirectoryFlag = "tempdir"
)

func spanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  configFlag,
			Usage: "Read settings from this TOML file instead of searching for one",
		},
		&cli.StringFlag{
			Name:    outfileFlag,
			Aliases: []string{"o"},
			Usage:   "Write the combined image to this file, the suffix picks the format",
		},
		&cli.BoolFlag{
			Name:    verboseFlag,
			Aliases: []string{"v"},
			Usage:   "Log every step",
		},
		&cli.BoolFlag{
			Name:    oneImageFlag,
			Aliases: []string{"1"},
			Usage:   "Stretch one image across every display",
		},
		&cli.StringFlag{
			Name:    fitImageFlag,
			Aliases: []string{"f"},
			Usage:   "Fit each image inside its display, filling the borders with R,G,B",
		},
		&cli.Float64Flag{
			Name:    timeDelayFlag,
			Aliases: []string{"t"},
			Usage:   "Minutes between new backgrounds, 0 runs once",
		},
		&cli.Float64Flag{
			Name:    percentErrorFlag,
			Aliases: []string{"p"},
			Usage:   "Percentage of a display allowed to go uncovered before another image is tried",
		},
		&cli.IntFlag{
			Name:    zoomSplineFlag,
			Aliases: []string{"z"},
			Usage:   "Interpolation order from 0 (fastest) to 5 (best)",
		},
		&cli.BoolFlag{
			Name:    sequentialFlag,
			Aliases: []string{"s"},
			Usage:   "Use images in order instead of randomly",
		},
		&cli.StringFlag{
			Name:    colorFillFlag,
			Aliases: []string{"c"},
			Usage:   "R,G,B color for areas outside every display",
		},
		&cli.BoolFlag{
			Name:    recursiveFlag,
			Aliases: []string{"R"},
			Usage:   "Search directories recursively",
		},
		&cli.BoolFlag{
			Name:    dontApplyFlag,
			Aliases: []string{"d"},
			Usage:   "Only write the image, do not set it as the background",
		},
		&cli.BoolFlag{
			Name:  noClobberFlag,
			Usage: "Refuse to overwrite an existing output file",
		},
		&cli.StringSliceFlag{
			Name:    resListFlag,
			Aliases: []string{"r"},
			Usage:   "Use these displays instead of querying them, WIDTHxHEIGHT+X+Y",
		},
		&cli.StringFlag{
			Name:    windowsFlag,
			Aliases: []string{"w"},
			Usage:   "X,Y offset of the primary display's top-left in the bounding box",
		},
		&cli.BoolFlag{
			Name:    x11Flag,
			Aliases: []string{"x"},
			Usage:   "Never wrap the image around the primary display",
		},
		&cli.StringFlag{
			Name:    logCurrentFlag,
			Aliases: []string{"L"},
			Usage:   "Write the paths of the images in use to this file",
		},
		&cli.IntFlag{
			Name:  maxAttemptsFlag,
			Usage: "Images tried per display before giving up on the tolerance",
		},
		&cli.StringFlag{
			Name:  tempDirectoryFlag,
			Usage: "Directory for converted images",
		},
	}
}

// Flags override the config file only when given.
func applyFlags(c *cli.Context, conf *lib.Config) error {
	if c.Args().Len() > 0 {
		conf.Inputs = c.Args().Slice()
	}
	if c.IsSet(outfileFlag) {
		conf.OutputFile = c.String(outfileFlag)
	}
	if c.IsSet(verboseFlag) {
		conf.Verbose = c.Bool(verboseFlag)
	}
	if c.IsSet(logCurrentFlag) {
		conf.LogCurrent = c.String(logCurrentFlag)
	}

	if c.IsSet(oneImageFlag) && c.IsSet(fitImageFlag) {
		return &lib.ConfigError{Msg: "--oneimage and --fitimage are mutually exclusive"}
	}
	if c.Bool(oneImageFlag) {
		conf.Mode = "oneimage"
	}
	if c.IsSet(fitImageFlag) {
		conf.Mode = "fit"
		rgb, err := lib.ParseInts(c.String(fitImageFlag))
		if err != nil {
			return &lib.ConfigError{Msg: "--fitimage", Err: err}
		}
		conf.FitColor = rgb
	}
	if c.IsSet(colorFillFlag) {
		rgb, err := lib.ParseInts(c.String(colorFillFlag))
		if err != nil {
			return &lib.ConfigError{Msg: "--colorfill", Err: err}
		}
		conf.BackgroundColor = rgb
	}

	if c.IsSet(timeDelayFlag) {
		conf.Interval = c.Float64(timeDelayFlag)
	}
	if c.IsSet(percentErrorFlag) {
		tol := c.Float64(percentErrorFlag)
		conf.Tolerance = &tol
	}
	if c.IsSet(zoomSplineFlag) {
		conf.Interpolation = c.Int(zoomSplineFlag)
	}
	if c.IsSet(maxAttemptsFlag) {
		conf.MaxAttempts = c.Int(maxAttemptsFlag)
	}

	if c.IsSet(sequentialFlag) {
		conf.Sequential = c.Bool(sequentialFlag)
	}
	if c.IsSet(recursiveFlag) {
		conf.Recursive = c.Bool(recursiveFlag)
	}
	if c.IsSet(dontApplyFlag) {
		conf.DontApply = c.Bool(dontApplyFlag)
	}
	if c.IsSet(noClobberFlag) {
		conf.NoClobber = c.Bool(noClobberFlag)
	}

	if c.IsSet(resListFlag) {
		conf.ResList = c.StringSlice(resListFlag)
	}
	if c.IsSet(windowsFlag) {
		xy, err := lib.ParseInts(c.String(windowsFlag))
		if err != nil {
			return &lib.ConfigError{Msg: "--windows", Err: err}
		}
		conf.WindowsOrigin = xy
	}
	if c.IsSet(x11Flag) {
		conf.ForceX11 = c.Bool(x11Flag)
	}
	if c.IsSet(tempDirectoryFlag) {
		conf.TempDirectory = c.String(tempDirectoryFlag)
	}
	return nil
}

func spanAction(c *cli.Context) error {
	conf := loadConfig(c)

	err := conf.Validate()
	checkErr(err)

	runner, err := lib.NewRunner(conf)
	checkErr(err)

	if conf.Interval > 0 {
		log.Infof("Changing the background every %g minutes", conf.Interval)
	}

	err = runner.Run(c.Context)
	if errors.Is(err, context.Canceled) {
		log.Debugln("Interrupted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("Error creating the background: %w", err)
	}
	return nil
}
