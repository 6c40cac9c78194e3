package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/spec-kit/sector-mail-desk/internal/cache"
	"github.com/spec-kit/sector-mail-desk/internal/domain"
	"github.com/spec-kit/sector-mail-desk/internal/events"
	"github.com/spec-kit/sector-mail-desk/internal/extract"
	"github.com/spec-kit/sector-mail-desk/internal/mail"
	"github.com/spec-kit/sector-mail-desk/internal/observability"
)

// RunLockKey guards against overlapping runs.
const RunLockKey = "ingest:run-lock"

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeAlreadyProcessed
	outcomeDuplicate
	outcomeRejected
)

// Dependencies bundles pipeline collaborators.
type Dependencies struct {
	Client     mail.Client
	Body       *extract.BodyExtractor
	Guard      *Guard
	Writer     *Writer
	Sweeper    *Sweeper
	Locker     cache.Locker
	LockTTL    time.Duration
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Pipeline processes enabled sectors one after another and messages one at a
// time, so the existence check for a ticket number always observes earlier
// writes of the same run.
type Pipeline struct {
	client     mail.Client
	body       *extract.BodyExtractor
	guard      *Guard
	writer     *Writer
	sweeper    *Sweeper
	locker     cache.Locker
	lockTTL    time.Duration
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewPipeline builds the orchestrator.
func NewPipeline(deps Dependencies) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	body := deps.Body
	if body == nil {
		body = extract.NewBodyExtractor(logger)
	}
	return &Pipeline{
		client:     deps.Client,
		body:       body,
		guard:      deps.Guard,
		writer:     deps.Writer,
		sweeper:    deps.Sweeper,
		locker:     deps.Locker,
		lockTTL:    deps.LockTTL,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Run ingests every enabled sector. Per-message failures are logged and
// counted; a sector-level failure stops the run with a *SectorError.
func (p *Pipeline) Run(ctx context.Context, settings domain.Settings) (*RunReport, error) {
	report := &RunReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	logger := p.logger.With(zap.String("run_id", report.RunID))

	release, err := p.acquire(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer release()
	defer func() { p.metrics.ObserveRun(time.Since(report.StartedAt)) }()

	configured := settings.ConfiguredSectors()
	var attempted []domain.Sector
	for _, sector := range domain.Sectors {
		cfg, ok := settings.Sectors[sector]
		if !ok {
			continue
		}
		if !cfg.Enabled {
			report.Sectors = append(report.Sectors, SectorReport{Sector: sector, Skipped: true, SkipReason: "disabled"})
			continue
		}
		attempted = append(attempted, sector)

		sectorReport, err := p.runSector(ctx, logger.With(zap.String("sector", string(sector))), sector, cfg, settings.Global)
		report.Sectors = append(report.Sectors, sectorReport)
		if err != nil {
			report.FinishedAt = time.Now().UTC()
			logger.Error("sector failed, aborting run",
				zap.String("sector", string(sector)),
				zap.Strings("configured_sectors", configured),
				zap.Error(err))
			return report, &SectorError{Sector: sector, Attempted: attempted, Configured: configured, Err: err}
		}
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info("ingestion run finished",
		zap.Int("sectors", len(report.Sectors)),
		zap.Int("created", report.Created()),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// Sweep runs the cleanup pass for one sector outside a full run.
func (p *Pipeline) Sweep(ctx context.Context, sector domain.Sector) (SweepResult, error) {
	result, err := p.sweeper.Sweep(ctx, sector)
	if err != nil {
		return result, err
	}
	p.publish(ctx, events.EventSectorSwept, sector, "", events.SectorSweptPayload{
		InvalidRemoved:    result.InvalidRemoved,
		DuplicatesRemoved: result.DuplicatesRemoved,
	})
	return result, nil
}

func (p *Pipeline) acquire(ctx context.Context, logger *zap.Logger) (func(), error) {
	noop := func() {}
	if p.locker == nil {
		return noop, nil
	}
	release, ok, err := p.locker.Acquire(ctx, RunLockKey, p.lockTTL)
	if err != nil {
		logger.Warn("run lock unavailable, continuing unlocked", zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("run lock release failed", zap.Error(err))
		}
	}, nil
}

func (p *Pipeline) runSector(ctx context.Context, logger *zap.Logger, sector domain.Sector, cfg domain.SectorConfig, global domain.GlobalConfig) (SectorReport, error) {
	report := SectorReport{Sector: sector}

	labelIDs, err := p.client.ResolveLabelIDs(ctx, cfg.Labels)
	if err != nil {
		return report, fmt.Errorf("resolve labels: %w", err)
	}
	if len(labelIDs) == 0 {
		logger.Warn("no source label resolved, skipping sector", zap.Strings("labels", cfg.Labels))
		report.Skipped = true
		report.SkipReason = "no labels resolved"
		return report, nil
	}

	processedID, _, err := p.client.FindLabelID(ctx, global.ProcessedLabelName)
	if err != nil {
		return report, fmt.Errorf("resolve processed label: %w", err)
	}

	ids, err := p.client.ListMessageIDs(ctx, labelIDs, global.MaxMessagesPerRun)
	if err != nil {
		return report, fmt.Errorf("list messages: %w", err)
	}
	report.Listed = len(ids)
	p.metrics.MessagesSeen(string(sector), len(ids))

	for _, id := range ids {
		msgLogger := logger.With(zap.String("message_id", id))
		result, err := p.processMessage(ctx, msgLogger, sector, cfg, global, processedID, id)
		if err != nil {
			report.Failed++
			p.metrics.MessageFailed(string(sector))
			msgLogger.Error("message processing failed", zap.Error(err))
			continue
		}
		switch result {
		case outcomeCreated:
			report.Created++
		case outcomeAlreadyProcessed:
			report.AlreadyProcessed++
		case outcomeDuplicate:
			report.Duplicates++
			p.metrics.DuplicateSkipped(string(sector))
		case outcomeRejected:
			report.Rejected++
			p.metrics.Rejected(string(sector))
		}
	}

	swept, err := p.Sweep(ctx, sector)
	if err != nil {
		return report, fmt.Errorf("sweep: %w", err)
	}
	report.InvalidRemoved = swept.InvalidRemoved
	report.DuplicatesRemoved = swept.DuplicatesRemoved

	logger.Info("sector processed",
		zap.Int("listed", report.Listed),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("rejected", report.Rejected),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (p *Pipeline) processMessage(ctx context.Context, logger *zap.Logger, sector domain.Sector, cfg domain.SectorConfig, global domain.GlobalConfig, processedID, id string) (outcome, error) {
	msg, err := p.client.GetMessage(ctx, id)
	if err != nil {
		return 0, err
	}
	if processedID != "" && lo.Contains(msg.LabelIDs, processedID) {
		logger.Debug("message already processed")
		return outcomeAlreadyProcessed, nil
	}

	fields := extract.ExtractFields(p.body.Extract(msg))
	ticketNumber := NormalizeTicketNumber(fields.TicketNumber)
	if ticketNumber == "" {
		logger.Warn("ticket number rejected",
			zap.String("raw_ticket_number", fields.TicketNumber),
			zap.String("ticket_number", ticketNumber))
		return outcomeRejected, nil
	}

	exists, err := p.guard.Exists(ctx, sector, ticketNumber)
	if err != nil {
		return 0, fmt.Errorf("check ticket %s: %w", ticketNumber, err)
	}
	if exists {
		logger.Info("ticket already exists, message left unlabelled", zap.String("ticket_number", ticketNumber))
		return outcomeDuplicate, nil
	}

	ticket, err := p.writer.Write(ctx, sector, msg, fields, ticketNumber, global.ProcessedLabelName)
	if err != nil {
		return 0, err
	}
	logger.Info("ticket created",
		zap.String("ticket_number", ticketNumber),
		zap.String("ticket_id", ticket.ID),
		zap.String("thread_id", ticket.ThreadID))

	p.publish(ctx, events.EventTicketIngested, sector, ticket.ID, events.TicketIngestedPayload{
		TicketNumber:    ticket.TicketNumber,
		CompanyName:     ticket.CompanyName,
		SourceMessageID: ticket.SourceMessageID,
		Responsibles:    cfg.Responsibles,
	})
	return outcomeCreated, nil
}

func (p *Pipeline) publish(ctx context.Context, eventType events.EventType, sector domain.Sector, ticketID string, payload interface{}) {
	if p.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Sector:    sector,
		TicketID:  ticketID,
		Actor:     events.Actor{Type: domain.SubjectTypeScheduler},
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event publish failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

// IsSectorError reports whether err aborted a run at sector level.
func IsSectorError(err error) bool {
	var sectorErr *SectorError
	return errors.As(err, &sectorErr)
}
