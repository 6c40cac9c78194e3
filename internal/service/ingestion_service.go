package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/config"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/ingest"
	"github.com/spec-kit/sector-mail-desk/internal/repository"
	apperrors "github.com/spec-kit/sector-mail-desk/pkg/util/errorutil"
)

// IngestionService loads the settings document and drives the pipeline.
type IngestionService struct {
	settings repository.SettingsRepository
	pipeline *ingest.Pipeline
	defaults config.IngestionConfig
	logger   *zap.Logger
}

// NewIngestionService wires the service.
func NewIngestionService(settings repository.SettingsRepository, pipeline *ingest.Pipeline, defaults config.IngestionConfig, logger *zap.Logger) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{settings: settings, pipeline: pipeline, defaults: defaults, logger: logger}
}

// Settings returns the stored settings with defaults applied.
func (s *IngestionService) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return settings.WithDefaults(s.defaults.DefaultMaxMessages, s.defaults.DefaultProcessedLabel), nil
}

// SaveSettings replaces the settings document.
func (s *IngestionService) SaveSettings(ctx context.Context, settings domain.Settings) error {
	return s.settings.Save(ctx, settings)
}

// Run executes one ingestion run. The report is returned even when a sector
// aborts the run.
func (s *IngestionService) Run(ctx context.Context) (*ingest.RunReport, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	report, err := s.pipeline.Run(ctx, settings)
	var sectorErr *ingest.SectorError
	switch {
	case err == nil:
		return report, nil
	case errors.Is(err, ingest.ErrRunInProgress):
		return report, apperrors.NewConflict("an ingestion run is already in progress", nil)
	case errors.As(err, &sectorErr):
		return report, apperrors.NewUpstreamError("ingestion aborted in sector "+string(sectorErr.Sector), err)
	default:
		return report, apperrors.NewInternalError(err)
	}
}

// Sweep runs the cleanup sweeper on one sector.
func (s *IngestionService) Sweep(ctx context.Context, sector domain.Sector) (ingest.SweepResult, error) {
	result, err := s.pipeline.Sweep(ctx, sector)
	if err != nil {
		return result, apperrors.NewInternalError(err)
	}
	return result, nil
}
