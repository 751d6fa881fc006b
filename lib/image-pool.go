package spanninglib

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Lower case suffixes. The upper case variants are accepted too, mixed case
// is not.
var imageSuffixes = []string{
	".bmp", ".dcx", ".dib", ".eps", ".gif", ".im", ".jpe", ".jpeg", ".jpg",
	".pbm", ".pcd", ".pcx", ".pdf", ".pgm", ".png", ".ppm", ".ps", ".psd",
	".tif", ".tiff", ".xbm", ".xpm"}

var suffixSet = func() map[string]bool {
	m := make(map[string]bool, 2*len(imageSuffixes))
	for _, s := range imageSuffixes {
		m[s] = true
		m[strings.ToUpper(s)] = true
	}
	return m
}()

// HasImageSuffix reports whether the file name ends in a recognized suffix.
func HasImageSuffix(name string) bool {
	return suffixSet[filepath.Ext(name)]
}

// AcceptFunc decides whether a drawn candidate can be used. Returning an
// *UnreadableImageError skips the candidate without counting an attempt.
type AcceptFunc func(path string) (bool, error)

// ImagePool serves candidate images without replacement. The remaining set
// is only rebuilt once it runs dry.
type ImagePool struct {
	inputs     []string
	recursive  bool
	sequential bool
	rng        *rand.Rand

	all       []string
	remaining []string
	refills   int
}

// NewImagePool validates the inputs and performs the first scan.
// An empty candidate list is not an error until something is drawn.
func NewImagePool(inputs []string, recursive, sequential bool) (*ImagePool, error) {
	if len(inputs) == 0 {
		return nil, configErrorf("No image files or directories given")
	}

	p := &ImagePool{
		inputs:     make([]string, len(inputs)),
		recursive:  recursive,
		sequential: sequential,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for i, in := range inputs {
		abs, err := processPath(in)
		if err != nil {
			return nil, &ConfigError{Msg: "Invalid input path [" + in + "]", Err: err}
		}
		p.inputs[i] = abs
	}

	if err := p.Refill(); err != nil {
		return nil, err
	}
	return p, nil
}

// Seed replaces the random source, for reproducible draws.
func (p *ImagePool) Seed(seed int64) {
	p.rng = rand.New(rand.NewSource(seed))
}

// Refill re-expands every input, picking up filesystem changes, and resets
// the remaining set to the full candidate list.
func (p *ImagePool) Refill() error {
	all, err := expandInputs(p.inputs, p.recursive)
	if err != nil {
		return err
	}

	p.all = all
	p.remaining = append(p.remaining[:0], all...)
	p.refills++
	log.Debugf("Loaded %d image files from %d inputs", len(all), len(p.inputs))
	return nil
}

// Size is the number of candidates found by the last scan.
func (p *ImagePool) Size() int { return len(p.all) }

// Remaining is the number of candidates not yet used in this cycle.
func (p *ImagePool) Remaining() int { return len(p.remaining) }

// Refills counts scans, including the initial one.
func (p *ImagePool) Refills() int { return p.refills }

// Exhausted reports whether the current cycle has used every candidate.
func (p *ImagePool) Exhausted() bool { return len(p.remaining) == 0 }

// Next removes and returns one candidate, refilling first when the cycle is
// exhausted.
func (p *ImagePool) Next() (string, error) {
	return p.Take(func(string) (bool, error) { return true, nil }, 1)
}

// SequentialNext returns the index-th candidate of the full expanded list,
// wrapping around. It does not consume anything.
func (p *ImagePool) SequentialNext(index int) (string, error) {
	n := len(p.all)
	if n == 0 {
		return "", ErrEmptyPool
	}
	return p.all[((index%n)+n)%n], nil
}

// Take draws candidates until accept approves one, which is then removed
// from the remaining set. Rejected candidates stay available for later
// draws. After maxAttempts rejections Take gives up with errTooManyAttempts.
//
// If nothing is left to try the pool refills once per call. This covers
// both a drained cycle and a cycle whose leftovers were all rejected.
func (p *ImagePool) Take(accept AcceptFunc, maxAttempts int) (string, error) {
	tried := make(map[int]bool)
	refilled := false
	attempts := 0

	for {
		idx := p.pick(tried)
		if idx < 0 {
			if refilled {
				// Nothing left, or nothing that could even be decoded
				if len(p.remaining) == 0 || attempts == 0 {
					return "", ErrEmptyPool
				}
				return "", errTooManyAttempts
			}
			if len(p.remaining) != 0 {
				log.Debugf(
					"None of the %d remaining images are suitable, reloading",
					len(p.remaining))
			}
			if err := p.Refill(); err != nil {
				return "", err
			}
			refilled = true
			tried = make(map[int]bool)
			continue
		}

		path := p.remaining[idx]
		ok, err := accept(path)
		if err != nil {
			var ue *UnreadableImageError
			if !errors.As(err, &ue) {
				return "", err
			}
			log.Warnf("%s, ignoring it", err)
			tried[idx] = true
			continue
		}

		if ok {
			p.remaining = append(p.remaining[:idx], p.remaining[idx+1:]...)
			return path, nil
		}

		tried[idx] = true
		attempts++
		if attempts >= maxAttempts {
			return "", errTooManyAttempts
		}
	}
}

var errTooManyAttempts = errors.New("Too many rejected images")

// Returns an index into remaining that has not been tried, or -1.
func (p *ImagePool) pick(tried map[int]bool) int {
	if p.sequential {
		for i := range p.remaining {
			if !tried[i] {
				return i
			}
		}
		return -1
	}

	untried := len(p.remaining) - len(tried)
	if untried <= 0 {
		return -1
	}
	n := p.rng.Intn(untried)
	for i := range p.remaining {
		if tried[i] {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}

// Strips one pair of surrounding quotes, expands ~ and makes the path absolute.
func processPath(path string) (string, error) {
	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') ||
			(path[0] == '\'' && path[len(path)-1] == '\'') {
			path = path[1 : len(path)-1]
		}
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	return filepath.Abs(path)
}

func expandInputs(inputs []string, recursive bool) ([]string, error) {
	out := []string{}

	for _, in := range inputs {
		fi, err := os.Stat(in)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, configErrorf("Path [%s] does not exist", in)
			}
			return nil, err
		}

		switch {
		case fi.IsDir():
			files, err := listDirectory(in, recursive)
			if err != nil {
				return nil, err
			}
			out = append(out, files...)
		case fi.Mode().IsRegular():
			if HasImageSuffix(in) {
				out = append(out, in)
			}
		default:
			if HasImageSuffix(in) {
				return nil, configErrorf("Path [%s] is not a file or a directory", in)
			}
		}
	}

	return out, nil
}

// Lists image files in dir alphabetically. Subdirectories are visited in
// alphabetical order after the files of their parent when recursive is set.
// Only a failure to read dir itself is an error, unreadable subdirectories
// are skipped.
func listDirectory(dir string, recursive bool) ([]string, error) {
	visited := make(map[string]bool)
	files, err := walkDirectory(dir, recursive, visited)
	if err != nil {
		return nil, fmt.Errorf("Error reading directory [%s]: %w", dir, err)
	}
	return files, nil
}

func walkDirectory(dir string, recursive bool, visited map[string]bool) ([]string, error) {
	// Symlinked directories can form cycles
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if visited[real] {
			log.Debugf("Skipping [%s], already visited as [%s]", dir, real)
			return nil, nil
		}
		visited[real] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	files := []string{}
	subdirs := []string{}

	for _, e := range entries {
		path := filepath.Join(dir, e.Name())

		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			// Follow links to files and directories
			fi, err := os.Stat(path)
			if err != nil {
				continue
			}
			mode = fi.Mode().Type()
		}

		if mode.IsDir() {
			subdirs = append(subdirs, path)
		} else if mode.IsRegular() && HasImageSuffix(e.Name()) {
			files = append(files, path)
		}
	}

	if !recursive {
		return files, nil
	}

	for _, sd := range subdirs {
		sub, err := walkDirectory(sd, true, visited)
		if err != nil {
			log.Warnf("Skipping unreadable directory [%s]: %s", sd, err)
			continue
		}
		files = append(files, sub...)
	}
	return files, nil
}
