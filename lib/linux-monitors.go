//go:build !windows
// +build !windows

package spanninglib

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

var displayRE = regexp.MustCompile(`^:[0-9]+`)

// Trims individual screens out of an X11 DISPLAY variable
func trimDisplay(display string) string {
	trimmed := displayRE.FindString(display)
	if trimmed != "" {
		return trimmed
	}
	return display
}

// Run from cron or a login script DISPLAY may be unset
func currentDisplay() string {
	d := os.Getenv("DISPLAY")
	if d == "" {
		return ":0"
	}
	return d
}

func connectX() (*xgbutil.XUtil, error) {
	// Stop polluting stdout
	xgb.Logger.SetOutput(ioutil.Discard)
	xgbutil.Logger.SetOutput(ioutil.Discard)

	d := currentDisplay()
	X, err := xgbutil.NewConnDisplay(d)
	if err != nil {
		return nil, fmt.Errorf(
			"Error connecting to X display [%s], try setting displays with --reslist: %w",
			trimDisplay(d), err)
	}
	return X, nil
}

// QueryDisplays lists the active CRTCs in RandR order. X11 already uses the
// top-left of the bounding box as the origin.
func QueryDisplays() ([]Rect, error) {
	X, err := connectX()
	if err != nil {
		return nil, err
	}
	defer X.Conn().Close()

	Xgb := X.Conn()
	err = randr.Init(Xgb)
	if err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	root := xproto.Setup(Xgb).DefaultScreen(Xgb).Root

	resources, err := randr.GetScreenResources(Xgb, root).Reply()
	if err != nil {
		return nil, err
	}

	rects := []Rect{}
	for _, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(Xgb, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			return nil, err
		}

		// Connected but not enabled
		if info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}

		rects = append(rects, Rect{
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		})
	}

	return rects, nil
}
