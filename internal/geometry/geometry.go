// Package geometry turns an uploaded model into a solid volume. Parsing is
// delegated to a Reader; the Loader owns the transient upload file.
package geometry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/costcalc/internal/logger"
	"github.com/Simplici0/costcalc/internal/metrics"
)

// UnitDivisor rescales the reader's native cubic unit to cubic centimetres.
// It assumes the model is drawn in millimetres.
const UnitDivisor = 1000.0

var (
	ErrParseFailed         = errors.New("failed to load STEP file")
	ErrUnsupportedFile     = errors.New("only .stp and .step files are accepted")
	ErrUnsupportedGeometry = errors.New("unsupported geometry")
	ErrEmptyUpload         = errors.New("uploaded file is empty")
)

// Upload is the raw file received from the user.
type Upload struct {
	Name string
	Data []byte
}

// Solid is a parsed shape. It is queried once for its volume.
type Solid interface {
	Volume() (float64, error)
}

// Reader parses the model stored at path.
type Reader interface {
	Read(ctx context.Context, path string) (Solid, error)
}

// Result is the outcome of a successful load.
type Result struct {
	FileName     string
	NativeVolume float64
	VolumeCM3    float64
}

// HasSTEPExtension reports whether name ends in .stp or .step, ignoring case.
func HasSTEPExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".stp", ".step":
		return true
	default:
		return false
	}
}

// Loader writes each upload to its own temp file, parses it and removes the file.
type Loader struct {
	reader  Reader
	dir     string
	timeout time.Duration
	log     *logger.Logger
}

func NewLoader(reader Reader, dir string, timeout time.Duration, log *logger.Logger) *Loader {
	return &Loader{reader: reader, dir: dir, timeout: timeout, log: log}
}

// Load parses up and returns its volume in cm3. Any reader failure is reported
// as ErrParseFailed.
func (l *Loader) Load(ctx context.Context, up Upload) (Result, error) {
	if !HasSTEPExtension(up.Name) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFile, up.Name)
	}
	if len(up.Data) == 0 {
		return Result{}, fmt.Errorf("%w: %w", ErrParseFailed, ErrEmptyUpload)
	}

	path := filepath.Join(l.dir, "upload-"+uuid.NewString()+strings.ToLower(filepath.Ext(up.Name)))
	if err := os.WriteFile(path, up.Data, 0o600); err != nil {
		return Result{}, fmt.Errorf("store upload: %w", err)
	}
	defer l.release(path)

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	timer := metrics.NewTimer()
	native, err := l.parse(ctx, path)
	metrics.RecordParse(timer.Duration())
	if err != nil {
		l.log.Warn("model parse failed", logger.String("file", up.Name), logger.ErrorF(err))
		return Result{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	if math.IsNaN(native) || math.IsInf(native, 0) {
		l.log.Warn("model volume is not finite", logger.String("file", up.Name), logger.Float64("volume", native))
		return Result{}, fmt.Errorf("%w: volume is %v", ErrParseFailed, native)
	}

	res := Result{
		FileName:     up.Name,
		NativeVolume: native,
		VolumeCM3:    native / UnitDivisor,
	}
	l.log.Info("model parsed",
		logger.String("file", up.Name),
		logger.Int("bytes", len(up.Data)),
		logger.Float64("volume_cm3", res.VolumeCM3),
		logger.Duration("took", timer.Duration()),
	)
	return res, nil
}

func (l *Loader) parse(ctx context.Context, path string) (float64, error) {
	solid, err := l.reader.Read(ctx, path)
	if err != nil {
		return 0, err
	}
	return solid.Volume()
}

func (l *Loader) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.log.Warn("remove upload", logger.String("path", path), logger.ErrorF(err))
	}
}
