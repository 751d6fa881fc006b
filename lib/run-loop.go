package spanninglib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Runner owns everything that lives across iterations: the image pool and
// the collaborators for layout, composition and applying the result.
type Runner struct {
	Conf       *Config
	Pool       *ImagePool
	Layouts    LayoutSource
	Compositor *Compositor
	// Sets the written file as the desktop background, nil to skip
	Apply func(path string, l Layout) error
}

// NewRunner builds a runner from a validated config.
func NewRunner(c *Config) (*Runner, error) {
	pool, err := NewImagePool(c.Inputs, c.Recursive, c.Sequential)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Conf:       c,
		Pool:       pool,
		Layouts:    c.LayoutSource(),
		Compositor: c.Compositor(),
	}
	if !c.DontApply {
		r.Apply = SetSpanningWallpaper
	}
	return r, nil
}

// Iterate runs one full pass. Nothing is written unless composition succeeds.
func (r *Runner) Iterate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.checkClobber(); err != nil {
		return err
	}

	layout, err := r.Layouts.Layout()
	if err != nil {
		return err
	}
	log.Debugf("Using %d displays: %v", len(layout.Displays), layout.Displays)

	refills := r.Pool.Refills()
	comp, err := r.Compositor.Compose(layout, r.Pool)
	if r.Pool.Refills() != refills {
		log.Debugf("Reloaded the image list, found %d images", r.Pool.Size())
	}
	if err != nil {
		return err
	}

	img := comp.Image
	if layout.NeedsWrap() {
		log.Debugf("Wrapping the image around the primary display at %v", layout.Origin)
		img = WrapOutput(img, layout.Origin)
	}

	// Checked again in case something created the file while composing
	if err := r.checkClobber(); err != nil {
		return err
	}

	log.Debugf("Writing the combined image to [%s]", r.Conf.OutputFile)
	if err := SaveImage(img, r.Conf.OutputFile); err != nil {
		return err
	}

	// Only images that made it into the output are logged
	if r.Conf.LogCurrent != "" {
		if err := WriteImageLog(r.Conf.LogCurrent, comp.Paths()); err != nil {
			return err
		}
	}

	if r.Apply != nil {
		if err := r.Apply(r.Conf.OutputFile, layout); err != nil {
			// The image exists, failing to apply it is not worth stopping for
			log.Errorf("Error setting the background: %s", err)
		}
	}
	return nil
}

// Run iterates once, or forever when an interval is configured. Fatal errors
// and cancellation end the loop, anything else is logged and retried after
// the next sleep.
func (r *Runner) Run(ctx context.Context) error {
	interval := time.Duration(r.Conf.Interval * float64(time.Minute))

	for {
		err := r.Iterate(ctx)
		if interval <= 0 {
			return err
		}
		if err != nil {
			if IsFatal(err) || errors.Is(err, context.Canceled) {
				return err
			}
			log.Errorf("Iteration failed: %s", err)
		}

		log.Debugf("Sleeping for %s", interval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (r *Runner) checkClobber() error {
	if !r.Conf.NoClobber {
		return nil
	}
	if _, err := os.Stat(r.Conf.OutputFile); err == nil {
		return fmt.Errorf("[%s]: %w", r.Conf.OutputFile, ErrOverwriteProtected)
	} else if !os.IsNotExist(err) {
		return &OutputError{Path: r.Conf.OutputFile, Err: err}
	}
	return nil
}

// WriteImageLog replaces the file with one path per line.
func WriteImageLog(path string, images []string) error {
	content := strings.Join(images, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return &OutputError{Path: path, Err: err}
	}
	return nil
}
