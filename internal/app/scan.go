package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"stayscan/internal/adapters/observability"
	"stayscan/internal/domain"
	"stayscan/internal/scan"
)

// ScannerName labels scan-run bookkeeping rows.
const ScannerName = "calendar"

type ScanConfig struct {
	// BatchSize rooms are scanned concurrently; a batch is fully joined
	// before the next one starts.
	BatchSize int
	// Workers bounds concurrent sessions within a batch (defaults to
	// BatchSize).
	Workers int
	// RoomsPerSecond rate-limits listing opens across all workers, to stay
	// polite with the remote surface. Zero disables the limiter.
	RoomsPerSecond float64
	Scan           scan.Config
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.Workers <= 0 || c.Workers > c.BatchSize {
		c.Workers = c.BatchSize
	}
	return c
}

// ScanService is the fetch orchestrator: it fans a batch of rooms out to
// concurrent scan workers, collects every emitted day record onto one sink,
// then replays the sink sequentially through the reconciler inside a single
// storage pass. Sequential reconciliation means no two writes ever race on the
// same (room, day) key.
type ScanService struct {
	sessions domain.BrowserFactory
	repo     domain.CalendarRepository
	cache    domain.Cache
	rec      *Reconciler
	cfg      ScanConfig
	limiter  *rate.Limiter
}

func NewScanService(sessions domain.BrowserFactory, repo domain.CalendarRepository, cache domain.Cache, rec *Reconciler, cfg ScanConfig) *ScanService {
	cfg = cfg.withDefaults()
	var limiter *rate.Limiter
	if cfg.RoomsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RoomsPerSecond), 1)
	}
	return &ScanService{sessions: sessions, repo: repo, cache: cache, rec: rec, cfg: cfg, limiter: limiter}
}

type roomResult struct {
	roomID string
	res    scan.Result
	err    error
}

// ScanRooms scans every room in fixed-size batches and reconciles all emitted
// records in one pass, returning how many records were reconciled. A failing
// room contributes whatever it observed before failing; it never aborts its
// batch or the pass.
func (s *ScanService) ScanRooms(ctx context.Context, roomIDs []string) (int, error) {
	started := time.Now()
	var sink []domain.DayRecord
	var failedRooms, skippedCells, skippedQuotes int
	touched := make(map[string]struct{})

	for start := 0; start < len(roomIDs); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(roomIDs) {
			end = len(roomIDs)
		}
		batch := roomIDs[start:end]

		results := make(chan roomResult, len(batch))
		sem := semaphore.NewWeighted(int64(s.cfg.Workers))
		var wg sync.WaitGroup

		for _, id := range batch {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				return 0, err
			}
			wg.Add(1)
			go func(roomID string) {
				defer wg.Done()
				defer sem.Release(1)
				results <- s.scanRoom(ctx, roomID)
			}(id)
		}
		// The sink consumer only runs once every worker in the batch has
		// terminated; no interleaved partial reads.
		wg.Wait()
		close(results)

		for r := range results {
			skippedCells += r.res.SkippedCells
			skippedQuotes += r.res.SkippedQuotes
			if r.err != nil {
				failedRooms++
				observability.ObserveScanRoom("failed")
				log.Warn().Str("room", r.roomID).Err(r.err).Msg("room scan failed")
			} else {
				observability.ObserveScanRoom("ok")
			}
			if len(r.res.Records) > 0 {
				sink = append(sink, r.res.Records...)
				touched[r.roomID] = struct{}{}
			}
		}
	}

	reconciled, transitions, err := s.reconcileAll(ctx, sink)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, touched)

	log.Info().
		Int("rooms", len(roomIDs)).
		Int("failed_rooms", failedRooms).
		Int("records", len(sink)).
		Int("reconciled", reconciled).
		Int("transitions", transitions).
		Int("skipped_cells", skippedCells).
		Int("skipped_quotes", skippedQuotes).
		Dur("took", time.Since(started)).
		Msg("scan pass complete")
	return reconciled, nil
}

func (s *ScanService) scanRoom(ctx context.Context, roomID string) roomResult {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return roomResult{roomID: roomID, err: err}
		}
	}

	startedAt := time.Now()
	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		s.recordRun(ctx, roomID, startedAt, false, fmt.Sprintf("session: %v", err))
		return roomResult{roomID: roomID, err: fmt.Errorf("open session: %w", err)}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn().Str("room", roomID).Err(cerr).Msg("session close failed")
		}
	}()

	res, err := scan.New(session, s.cfg.Scan).Scan(ctx, roomID)
	if err != nil {
		s.recordRun(ctx, roomID, startedAt, false, err.Error())
	} else {
		s.recordRun(ctx, roomID, startedAt, true, "")
	}
	return roomResult{roomID: roomID, res: res, err: err}
}

func (s *ScanService) recordRun(ctx context.Context, roomID string, startedAt time.Time, success bool, comment string) {
	run := domain.ScanRun{
		ScannerName: ScannerName,
		RoomID:      roomID,
		StartedAt:   startedAt,
		Success:     success,
	}
	now := time.Now()
	run.FinishedAt = &now
	if comment != "" {
		run.Comment = &comment
	}
	if err := s.repo.RecordScanRun(ctx, run); err != nil {
		log.Warn().Str("room", roomID).Err(err).Msg("scan run bookkeeping failed")
	}
}

// reconcileAll replays the sink through the reconciler in one transaction. A
// record that violates reconciliation invariants is logged and dropped; the
// pass continues for the rest.
func (s *ScanService) reconcileAll(ctx context.Context, sink []domain.DayRecord) (reconciled, transitions int, err error) {
	if len(sink) == 0 {
		return 0, 0, nil
	}
	pass, err := s.repo.BeginPass(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin pass: %w", err)
	}
	defer func() {
		if err != nil {
			_ = pass.Rollback()
		}
	}()

	for _, rec := range sink {
		t, rerr := s.rec.Reconcile(ctx, pass, rec)
		if rerr != nil {
			log.Error().Str("room", rec.RoomID).Time("day", rec.CalendarDay).Err(rerr).Msg("record reconciliation failed")
			continue
		}
		reconciled++
		if t != nil {
			transitions++
			observability.ObserveTransition(t.TransitionType)
		}
	}
	if err = pass.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit pass: %w", err)
	}
	return reconciled, transitions, nil
}

func (s *ScanService) invalidate(ctx context.Context, rooms map[string]struct{}) {
	if s.cache == nil {
		return
	}
	for roomID := range rooms {
		// Keep the read API from serving a pre-pass snapshot.
		_ = s.cache.Del(ctx, calendarCacheKey(roomID))
	}
}
