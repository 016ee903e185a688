// Package estimate ties the geometry loader, the reference dataset and the
// cost calculator into the two entry points used by the web handlers.
package estimate

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/Simplici0/costcalc/internal/catalog"
	"github.com/Simplici0/costcalc/internal/geometry"
	"github.com/Simplici0/costcalc/internal/logger"
	"github.com/Simplici0/costcalc/internal/metrics"
	"github.com/Simplici0/costcalc/internal/pricing"
	"github.com/Simplici0/costcalc/internal/report"
)

var ErrValidation = errors.New("invalid selection")

// Selection is the user's material and MOQ choice.
type Selection struct {
	Material string
	MOQ      int
}

// Validate checks the selection against the offered options.
func (s Selection) Validate() error {
	if !lo.Contains(catalog.MaterialOptions, s.Material) {
		return fmt.Errorf("%w: material %q is not one of %v", ErrValidation, s.Material, catalog.MaterialOptions)
	}
	if !lo.Contains(catalog.MOQOptions, s.MOQ) {
		return fmt.Errorf("%w: moq %d is not one of %v", ErrValidation, s.MOQ, catalog.MOQOptions)
	}
	return nil
}

// Geometry is what survives of a parsed upload between requests.
type Geometry struct {
	FileName  string
	VolumeCM3 float64
}

// Outcome is a completed estimate. When pricing fails after a successful
// parse only Geometry is set, so the caller can offer another selection.
type Outcome struct {
	Geometry Geometry
	Report   pricing.Report
	Lines    []string
}

// Loader parses an upload into a volume.
type Loader interface {
	Load(ctx context.Context, up geometry.Upload) (geometry.Result, error)
}

type Service struct {
	loader Loader
	source catalog.Source
	log    *logger.Logger
}

func NewService(loader Loader, source catalog.Source, log *logger.Logger) *Service {
	return &Service{loader: loader, source: source, log: log}
}

// FromUpload parses up and prices it for sel.
func (s *Service) FromUpload(ctx context.Context, up geometry.Upload, sel Selection) (out Outcome, err error) {
	defer func() { metrics.RecordEstimate(Classify(err)) }()

	if err := sel.Validate(); err != nil {
		return Outcome{}, err
	}
	res, err := s.loader.Load(ctx, up)
	if err != nil {
		return Outcome{}, err
	}
	return s.price(ctx, Geometry{FileName: res.FileName, VolumeCM3: res.VolumeCM3}, sel)
}

// FromVolume prices an already parsed model, skipping the upload.
func (s *Service) FromVolume(ctx context.Context, g Geometry, sel Selection) (out Outcome, err error) {
	defer func() { metrics.RecordEstimate(Classify(err)) }()

	if err := sel.Validate(); err != nil {
		return Outcome{}, err
	}
	return s.price(ctx, g, sel)
}

func (s *Service) price(ctx context.Context, g Geometry, sel Selection) (Outcome, error) {
	cat, err := s.source.Load(ctx)
	if err != nil {
		if !errors.Is(err, catalog.ErrDatasetUnavailable) && !errors.Is(err, catalog.ErrInvalidDataset) {
			err = fmt.Errorf("%w: %w", catalog.ErrDatasetUnavailable, err)
		}
		s.log.Error("load reference dataset", logger.ErrorF(err))
		return Outcome{Geometry: g}, err
	}
	if dups := cat.Duplicates(); len(dups) > 0 {
		s.log.Warn("duplicate dataset keys, first row used", logger.Any("keys", dups))
	}

	m, w, err := cat.Lookup(sel.Material, sel.MOQ)
	if err != nil {
		table := "material"
		if errors.Is(err, catalog.ErrMOQNotFound) {
			table = "moq"
		}
		metrics.RecordLookupMiss(table)
		s.log.Warn("dataset lookup miss",
			logger.String("table", table),
			logger.String("material", sel.Material),
			logger.Int("moq", sel.MOQ),
		)
		return Outcome{Geometry: g}, err
	}

	r := pricing.Calculate(g.VolumeCM3, m, w)
	s.log.Info("estimate computed",
		logger.String("file", g.FileName),
		logger.String("material", m.Name),
		logger.Int("moq", w.MOQ),
		logger.Float64("volume_cm3", r.Volume),
		logger.Float64("total_cost", r.TotalCost),
	)
	return Outcome{Geometry: g, Report: r, Lines: report.Lines(r)}, nil
}

// Classify maps an estimate error to its metrics outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrValidation), errors.Is(err, geometry.ErrUnsupportedFile):
		return metrics.OutcomeInvalid
	case errors.Is(err, geometry.ErrParseFailed):
		return metrics.OutcomeParseFailed
	case errors.Is(err, catalog.ErrMaterialNotFound), errors.Is(err, catalog.ErrMOQNotFound):
		return metrics.OutcomeLookupMiss
	case errors.Is(err, catalog.ErrDatasetUnavailable), errors.Is(err, catalog.ErrInvalidDataset):
		return metrics.OutcomeDataset
	default:
		return metrics.OutcomeError
	}
}
