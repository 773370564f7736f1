package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"meurenda/internal/amqp"
	"meurenda/internal/cache"
	"meurenda/internal/core"
	"meurenda/internal/goals"
	applog "meurenda/internal/log"
	"meurenda/internal/report"
	"meurenda/internal/state"
)

// ErrNoActiveGoal is returned by the plan and tracking reads when no goal is active.
var ErrNoActiveGoal = errors.New("no active goal")

// SyncPublisher receives ledger changes for downstream mirrors.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error
}

const (
	collectionTransactions = "transactions"
	collectionGoals        = "goals"

	reportCacheSize = 64
	reportCacheTTL  = 5 * time.Minute
)

// FinanceService orchestrates ledger and goal operations across the in-memory
// store, the persistence backend and the sync publisher.
type FinanceService struct {
	store     *state.Store
	persister state.Persister
	publisher SyncPublisher
	reports   *cache.LRUCache[report.Report]
	logger    *applog.Logger
	now       func() time.Time

	// writeMu serialises a mutation with its save so that saves reach the
	// persister in the same order as the store applied them.
	writeMu sync.Mutex

	mu          sync.Mutex
	persistErrs map[string]error
	reportGen   uint64
}

// NewFinanceService wires the service. publisher may be nil when sync is disabled.
func NewFinanceService(store *state.Store, persister state.Persister, publisher SyncPublisher, logger *applog.Logger) *FinanceService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &FinanceService{
		store:     store,
		persister: persister,
		publisher: publisher,
		reports:   cache.NewLRUCache[report.Report](reportCacheSize, reportCacheTTL),
		logger:    logger.WithComponent(applog.ComponentFinance),
		now:         time.Now,
		persistErrs: make(map[string]error),
	}
}

// SetClock overrides the service clock.
func (s *FinanceService) SetClock(now func() time.Time) {
	s.now = now
	s.invalidateReports()
}

// ReportCache exposes the report cache so it can be registered with a cache.Manager.
func (s *FinanceService) ReportCache() *cache.LRUCache[report.Report] {
	return s.reports
}

// Load reads both collections from the persister into the store.
func (s *FinanceService) Load(ctx context.Context) error {
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	s.store.Load(snap)
	s.invalidateReports()
	s.logger.InfoContext(ctx, "State loaded",
		applog.FieldOperation, applog.OpStartup,
		"transactions", len(snap.Transactions),
		"goals", len(snap.Goals))
	return nil
}

// LastPersistError returns the latest save error of each collection that is
// currently out of sync with its stored copy, or nil when both are saved.
func (s *FinanceService) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, name := range []string{collectionTransactions, collectionGoals} {
		if err := s.persistErrs[name]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *FinanceService) Transactions(typ core.TransactionType) ([]core.Transaction, error) {
	all := s.store.Transactions()
	if typ == "" {
		return all, nil
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidType, typ)
	}
	out := make([]core.Transaction, 0, len(all))
	for _, t := range all {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *FinanceService) Goals() []core.Goal {
	return s.store.Goals()
}

// AddTransaction records a transaction, persists the ledger and publishes an upsert.
func (s *FinanceService) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, all, err := s.store.AddTransaction(in)
	if err != nil {
		return core.Transaction{}, err
	}
	s.saveTransactions(ctx, all)
	s.publish(ctx, amqp.NewUpsertMessage(tx))

	applog.NewStructuredLogger(s.logger).LogTransactionCreated(ctx,
		tx.ID, string(tx.Type), tx.Amount.String(), tx.Category)
	return tx, nil
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	removed, all, err := s.store.DeleteTransaction(id)
	if err != nil {
		return err
	}
	s.saveTransactions(ctx, all)
	s.publish(ctx, amqp.NewDeleteMessage(removed.ID))

	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, removed.ID)
	return nil
}

// ClearTransactions removes every transaction of typ and returns how many went.
func (s *FinanceService) ClearTransactions(ctx context.Context, typ core.TransactionType) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, all, err := s.store.ClearTransactionsByType(typ)
	if err != nil {
		return 0, err
	}
	s.saveTransactions(ctx, all)
	s.publish(ctx, amqp.NewClearMessage(typ))

	s.logger.InfoContext(ctx, "Transactions cleared",
		applog.FieldOperation, applog.OpClear,
		applog.FieldTxType, string(typ),
		applog.FieldCount, n)
	return n, nil
}

// SaveGoal normalizes and validates g, then inserts or replaces it.
func (s *FinanceService) SaveGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	now := s.now()
	g = goals.Normalize(g, now)
	if err := goals.Validate(g, now); err != nil {
		return core.Goal{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	saved, all := s.store.UpdateGoal(g)
	s.saveGoals(ctx, all)

	s.logger.InfoContext(ctx, "Goal saved",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldGoalID, saved.ID,
		"goal_type", string(saved.Type),
		"active", saved.IsActive)
	return saved, nil
}

func (s *FinanceService) DeleteGoal(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.store.DeleteGoal(id)
	if err != nil {
		return err
	}
	s.saveGoals(ctx, all)
	s.logger.InfoContext(ctx, "Goal deleted", applog.FieldOperation, applog.OpDelete, applog.FieldGoalID, id)
	return nil
}

func (s *FinanceService) ActivateGoal(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.store.SetActiveGoal(id)
	if err != nil {
		return err
	}
	s.saveGoals(ctx, all)
	s.logger.InfoContext(ctx, "Goal activated", applog.FieldOperation, applog.OpUpdate, applog.FieldGoalID, id)
	return nil
}

func (s *FinanceService) ClearGoals(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.store.ClearGoals()
	s.saveGoals(ctx, []core.Goal{})
	s.logger.InfoContext(ctx, "Goals cleared", applog.FieldOperation, applog.OpClear)
}

// Reset empties both collections everywhere.
func (s *FinanceService) Reset(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.store.ResetApp()
	s.saveTransactions(ctx, []core.Transaction{})
	s.saveGoals(ctx, []core.Goal{})
	s.publish(ctx, amqp.NewResetMessage())
	s.logger.WarnContext(ctx, "Application reset", applog.FieldOperation, applog.OpReset)
}

func (s *FinanceService) Dashboard() report.Dashboard {
	return report.BuildDashboard(s.store.Transactions(), s.store.ActiveGoal(), s.now())
}

// Report builds the report for period. custom is only read for report.Custom.
// Results are cached until the ledger changes.
func (s *FinanceService) Report(p report.Period, custom core.DateRange) (report.Report, error) {
	r, err := report.ResolvePeriod(p, s.now(), custom)
	if err != nil {
		return report.Report{}, err
	}
	key := fmt.Sprintf("%s|%s|%s", p, r.Start, r.End)
	if cached, ok := s.reports.Get(key); ok {
		return cached, nil
	}

	gen := s.reportGeneration()
	rep := report.Build(p, r, s.store.Transactions())
	s.cacheReport(key, gen, rep)
	return rep, nil
}

// ActivePlan returns the active goal together with its plan.
func (s *FinanceService) ActivePlan() (core.Goal, goals.Plan, error) {
	g := s.store.ActiveGoal()
	if g == nil {
		return core.Goal{}, goals.Plan{}, ErrNoActiveGoal
	}
	return *g, goals.ComputePlan(*g, s.store.Transactions()), nil
}

// PreviewPlan plans an unsaved goal.
func (s *FinanceService) PreviewPlan(draft core.Goal) (goals.Plan, error) {
	return goals.Preview(draft, s.store.Transactions(), s.now())
}

// Tracking classifies each day of the current week against the active goal.
func (s *FinanceService) Tracking() ([]goals.DayStatus, error) {
	g := s.store.ActiveGoal()
	if g == nil {
		return nil, ErrNoActiveGoal
	}
	return goals.TrackWeek(*g, s.store.Transactions(), core.DateOf(s.now())), nil
}

func (s *FinanceService) reportGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportGen
}

// cacheReport stores rep unless the ledger changed after gen was read, in
// which case rep may be stale and is served uncached.
func (s *FinanceService) cacheReport(key string, gen uint64, rep report.Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.reportGen {
		return false
	}
	s.reports.Set(key, rep)
	return true
}

// invalidateReports drops cached reports and makes in-flight builds skip the cache.
func (s *FinanceService) invalidateReports() {
	s.mu.Lock()
	s.reportGen++
	s.reports.Purge()
	s.mu.Unlock()
}

func (s *FinanceService) saveTransactions(ctx context.Context, txs []core.Transaction) {
	s.invalidateReports()
	s.recordPersist(ctx, collectionTransactions, s.persister.SaveTransactions(ctx, txs))
}

func (s *FinanceService) saveGoals(ctx context.Context, gs []core.Goal) {
	s.recordPersist(ctx, collectionGoals, s.persister.SaveGoals(ctx, gs))
}

// recordPersist keeps the in-memory mutation when a save fails. The error
// stays visible through LastPersistError until the same collection saves.
func (s *FinanceService) recordPersist(ctx context.Context, collection string, err error) {
	s.mu.Lock()
	if err != nil {
		s.persistErrs[collection] = err
	} else {
		delete(s.persistErrs, collection)
	}
	s.mu.Unlock()
	if err != nil {
		applog.NewStructuredLogger(s.logger).LogError(ctx, "Failed to persist collection", err,
			applog.OpPersist, applog.NewFields().With(applog.FieldCollection, collection))
		s.logger.WarnContext(ctx, "State kept in memory only", applog.FieldCollection, collection)
	}
}

func (s *FinanceService) publish(ctx context.Context, msg *amqp.TransactionSyncMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping sync message", "op", string(msg.Op))
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, msg); err != nil {
		// The change is already applied locally.
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldOperation, applog.OpSync,
			"op", string(msg.Op),
			applog.FieldTransactionID, msg.TransactionID,
			applog.FieldError, err.Error())
	}
}
