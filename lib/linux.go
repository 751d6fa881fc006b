//go:build !windows
// +build !windows

package spanninglib

import (
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/BurntSushi/xgbutil/ewmh"
	log "github.com/sirupsen/logrus"
)

type environment int

const (
	gnome environment = iota
	lxde
	other
)

var sysProcAttr = &syscall.SysProcAttr{}

// Prefers XDG_CURRENT_DESKTOP and falls back to asking the window manager
func detectEnvironment() environment {
	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	if desktop == "" {
		if X, err := connectX(); err == nil {
			if wm, err := ewmh.GetEwmhWM(X); err == nil {
				desktop = strings.ToLower(wm)
			}
			X.Conn().Close()
		}
	}
	log.Debugf("Desktop environment is [%s]", desktop)

	switch {
	case strings.Contains(desktop, "lxde"):
		return lxde
	case strings.Contains(desktop, "gnome"),
		strings.Contains(desktop, "cinnamon"),
		strings.Contains(desktop, "unity"),
		strings.Contains(desktop, "mutter"):
		return gnome
	}
	return other
}

// SetSpanningWallpaper applies the composite as one image spanning every
// display.
func SetSpanningWallpaper(path string, l Layout) error {
	if l.NeedsWrap() {
		log.Warnln("Applying a wrapped Windows style image on X11")
	}

	env := os.Environ()
	if os.Getenv("DISPLAY") == "" {
		env = append(env, "DISPLAY="+currentDisplay())
	}

	switch detectEnvironment() {
	case gnome:
		uri := "file://" + path
		return runCommands(env, [][]string{
			{"gsettings", "set", "org.gnome.desktop.background", "picture-options", "spanned"},
			{"gsettings", "set", "org.gnome.desktop.background", "picture-uri", uri},
			{"gsettings", "set", "org.gnome.desktop.background", "picture-uri-dark", uri},
		})
	case lxde:
		return runCommands(env, [][]string{
			{"pcmanfm", "--set-wallpaper", path, "--wallpaper-mode=fit"},
		})
	default:
		// Feh probably works
		return runCommands(env, [][]string{
			{"feh", "--no-xinerama", "--bg-center", path},
		})
	}
}

func runCommands(env []string, cmds [][]string) error {
	for i, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Env = env
		cmd.SysProcAttr = sysProcAttr
		out, err := cmd.CombinedOutput()
		if err != nil {
			// Older GNOME has no dark variant
			if i > 0 && args[len(args)-2] == "picture-uri-dark" {
				continue
			}
			return errors.New(
				strings.Join(args, " ") + ": " + err.Error() + " " + strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// No-op
func AttachParentConsole() {}
