package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var txTracer = otel.Tracer("service/transactions")

// TransactionService keeps one cached month page per user on top of the
// transaction store. The store is always written first; the cached page
// follows only after the store accepted the change.
type TransactionService struct {
	store    port.TransactionStore
	storage  port.ObjectStorage
	events   port.EventPublisher
	pages    port.Cache[*domain.MonthPage]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time

	locks userLocks
}

// NewTransactionService creates the transactions service.
func NewTransactionService(
	store port.TransactionStore,
	storage port.ObjectStorage,
	events port.EventPublisher,
	pages port.Cache[*domain.MonthPage],
	bulkhead *resilience.Bulkhead,
	loc *time.Location,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransactionService {
	if loc == nil {
		loc = time.UTC
	}
	return &TransactionService{
		store:    store,
		storage:  storage,
		events:   events,
		pages:    pages,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock replaces the clock used to determine the current month.
func (s *TransactionService) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the time zone months are evaluated in.
func (s *TransactionService) Location() *time.Location {
	return s.loc
}

// CurrentMonth is the month the clock is in.
func (s *TransactionService) CurrentMonth() domain.Month {
	return domain.MonthOf(s.now(), s.loc)
}

func (s *TransactionService) lock(uid string) func() {
	return s.locks.lock(uid)
}

func (s *TransactionService) view(page *domain.MonthPage) *domain.MonthView {
	c := page.Clone()
	return &domain.MonthView{
		Month:        c.Month,
		Navigation:   domain.NewNavigation(c.Month, s.CurrentMonth(), c.OldestDate, s.loc),
		Transactions: c.Transactions,
		Summary:      domain.Summarize(c.Transactions),
		OldestDate:   c.OldestDate,
	}
}

// ============================================================
// Reads
// ============================================================

// Overview loads the current month and the watermark concurrently and
// caches the resulting page.
func (s *TransactionService) Overview(ctx context.Context, uid string) (*domain.MonthView, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Overview")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("transactions_overview", time.Since(start)) }()

	unlock := s.lock(uid)
	defer unlock()

	month := s.CurrentMonth()
	first, last := month.Bounds(s.loc)

	var (
		txs    []domain.Transaction
		oldest *time.Time
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.store.ListTransactionsBetween(gCtx, uid, first, last)
		if err != nil {
			s.metrics.IncrExternalError("transactions")
			return fmt.Errorf("list transactions: %w", err)
		}
		txs = list
		return nil
	})
	g.Go(func() error {
		d, err := s.store.OldestTransactionDate(gCtx, uid)
		if err != nil {
			s.metrics.IncrExternalError("transactions")
			return fmt.Errorf("oldest transaction: %w", err)
		}
		oldest = d
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("overview failed", zap.String("user_id", uid), zap.Error(err))
		return nil, err
	}

	page := domain.NewMonthPage(month, txs, oldest, s.loc)
	s.pages.Set(uid, page)
	return s.view(page), nil
}

// ListMonth loads month m and makes it the cached page. The watermark of
// the previous page is kept; it is fetched only when nothing is cached.
func (s *TransactionService) ListMonth(ctx context.Context, uid string, m domain.Month) (*domain.MonthView, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.ListMonth")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("month", m.String()))

	unlock := s.lock(uid)
	defer unlock()

	page, err := s.loadMonthLocked(ctx, uid, m)
	if err != nil {
		return nil, err
	}
	return s.view(page), nil
}

func (s *TransactionService) loadMonthLocked(ctx context.Context, uid string, m domain.Month) (*domain.MonthPage, error) {
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("transactions_month", time.Since(start)) }()

	first, last := m.Bounds(s.loc)
	txs, err := s.store.ListTransactionsBetween(ctx, uid, first, last)
	if err != nil {
		s.metrics.IncrExternalError("transactions")
		s.logger.Error("list month failed",
			zap.String("user_id", uid),
			zap.String("month", m.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	var oldest *time.Time
	if cached, ok := s.pages.Get(uid); ok {
		s.metrics.IncrCacheHit("month_page")
		oldest = cached.OldestDate
	} else {
		s.metrics.IncrCacheMiss("month_page")
		oldest, err = s.store.OldestTransactionDate(ctx, uid)
		if err != nil {
			s.metrics.IncrExternalError("transactions")
			return nil, fmt.Errorf("oldest transaction: %w", err)
		}
	}

	page := domain.NewMonthPage(m, txs, oldest, s.loc)
	s.pages.Set(uid, page)
	return page, nil
}

// Shift moves the cached page delta months. Going back stops at the
// watermark month and going forward stops at the current month.
func (s *TransactionService) Shift(ctx context.Context, uid string, delta int) (*domain.MonthView, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Shift")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.Int("delta", delta))

	unlock := s.lock(uid)
	defer unlock()

	page, ok := s.pages.Get(uid)
	if !ok {
		var err error
		if page, err = s.loadMonthLocked(ctx, uid, s.CurrentMonth()); err != nil {
			return nil, err
		}
	}

	nav := domain.NewNavigation(page.Month, s.CurrentMonth(), page.OldestDate, s.loc)
	switch {
	case delta < 0 && !nav.HasPrevious:
		return nil, &domain.ErrValidation{Field: "month", Message: "Não há transações em meses anteriores"}
	case delta > 0 && !nav.HasNext:
		return nil, &domain.ErrValidation{Field: "month", Message: "Não é possível avançar além do mês atual"}
	case delta == 0:
		return s.view(page), nil
	}

	next, err := s.loadMonthLocked(ctx, uid, page.Month.AddMonths(delta))
	if err != nil {
		return nil, err
	}
	return s.view(next), nil
}

// Get returns a single transaction.
func (s *TransactionService) Get(ctx context.Context, uid, id string) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	return s.store.GetTransaction(ctx, uid, id)
}

// ============================================================
// Mutations
// ============================================================

// Create validates req, stores it and inserts it into the cached page.
func (s *TransactionService) Create(ctx context.Context, uid string, req *domain.TransactionRequest) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	cat, err := req.Resolve()
	if err != nil {
		return nil, err
	}
	tx := req.ToTransaction("", cat)

	unlock := s.lock(uid)
	defer unlock()

	id, err := s.store.AddTransaction(ctx, uid, &tx)
	if err != nil {
		s.metrics.IncrExternalError("transactions")
		s.logger.Error("create transaction failed", zap.String("user_id", uid), zap.Error(err))
		return nil, fmt.Errorf("add transaction: %w", err)
	}
	tx.ID = id

	if page, ok := s.pages.Get(uid); ok {
		page.Insert(tx)
	}

	s.metrics.IncrTransactionMutation(domain.ActionCreated)
	s.logger.Info("transaction created",
		zap.String("user_id", uid),
		zap.String("transaction_id", id),
		zap.String("type", string(tx.Type)),
	)
	s.publish(ctx, uid, domain.ActionCreated, tx)
	return &tx, nil
}

// Update replaces the transaction id with req. An empty photoURL keeps
// the current receipt.
func (s *TransactionService) Update(ctx context.Context, uid, id string, req *domain.TransactionRequest) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	cat, err := req.Resolve()
	if err != nil {
		return nil, err
	}

	unlock := s.lock(uid)
	defer unlock()

	prev, err := s.store.GetTransaction(ctx, uid, id)
	if err != nil {
		return nil, err
	}

	next := req.ToTransaction(id, cat)
	if next.PhotoURL == "" {
		next.PhotoURL = prev.PhotoURL
	}
	if err := s.saveLocked(ctx, uid, *prev, next); err != nil {
		return nil, err
	}
	if next.PhotoURL != prev.PhotoURL {
		removeObject(ctx, s.storage, s.logger, prev.PhotoURL)
	}

	s.logger.Info("transaction updated", zap.String("user_id", uid), zap.String("transaction_id", id))
	return &next, nil
}

// Delete removes the transaction and recomputes the watermark when it
// was the oldest one.
func (s *TransactionService) Delete(ctx context.Context, uid, id string) error {
	ctx, span := txTracer.Start(ctx, "TransactionService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	unlock := s.lock(uid)
	defer unlock()

	prev, err := s.store.GetTransaction(ctx, uid, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, uid, id); err != nil {
		s.metrics.IncrExternalError("transactions")
		return fmt.Errorf("delete transaction: %w", err)
	}

	if page, ok := s.pages.Get(uid); ok && page.Remove(*prev) {
		s.refreshWatermark(ctx, uid, page)
	}

	removeObject(ctx, s.storage, s.logger, prev.PhotoURL)

	s.metrics.IncrTransactionMutation(domain.ActionDeleted)
	s.logger.Info("transaction deleted", zap.String("user_id", uid), zap.String("transaction_id", id))
	s.publish(ctx, uid, domain.ActionDeleted, *prev)
	return nil
}

// receiptExtensions are the image types accepted as receipts and photos.
var receiptExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
	"image/gif":  "gif",
}

// imageExtension validates contentType and returns the file extension for it.
func imageExtension(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if ext, ok := receiptExtensions[strings.ToLower(mediaType)]; ok {
			return ext, nil
		}
	}
	return "", &domain.ErrValidation{Field: "file", Message: "Formato de imagem não suportado"}
}

// UploadReceipt stores a receipt photo and attaches its URL to the transaction.
func (s *TransactionService) UploadReceipt(ctx context.Context, uid, id, contentType string, body io.Reader) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.UploadReceipt")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	ext, err := imageExtension(contentType)
	if err != nil {
		return nil, err
	}

	unlock := s.lock(uid)
	defer unlock()

	prev, err := s.store.GetTransaction(ctx, uid, id)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("users/%s/receipts/%s.%s", uid, uuid.New().String(), ext)
	var url string
	err = s.bulkhead.Do(ctx, func() error {
		var err error
		url, err = s.storage.Upload(ctx, path, contentType, body)
		return err
	})
	if err != nil {
		s.metrics.IncrExternalError("storage")
		s.logger.Error("receipt upload failed", zap.String("user_id", uid), zap.String("transaction_id", id), zap.Error(err))
		return nil, fmt.Errorf("upload receipt: %w", err)
	}

	next := *prev
	next.PhotoURL = url
	if err := s.saveLocked(ctx, uid, *prev, next); err != nil {
		removeObject(ctx, s.storage, s.logger, url)
		return nil, err
	}
	removeObject(ctx, s.storage, s.logger, prev.PhotoURL)
	return &next, nil
}

// saveLocked writes next over prev and syncs the cached page.
func (s *TransactionService) saveLocked(ctx context.Context, uid string, prev, next domain.Transaction) error {
	if err := s.store.UpdateTransaction(ctx, uid, &next); err != nil {
		s.metrics.IncrExternalError("transactions")
		return fmt.Errorf("update transaction: %w", err)
	}

	if page, ok := s.pages.Get(uid); ok && page.Replace(prev, next) {
		s.refreshWatermark(ctx, uid, page)
	}

	s.metrics.IncrTransactionMutation(domain.ActionUpdated)
	s.publish(ctx, uid, domain.ActionUpdated, next)
	return nil
}

// refreshWatermark reloads the oldest date from the store. On failure the
// page keeps its current watermark, which may only be too permissive.
func (s *TransactionService) refreshWatermark(ctx context.Context, uid string, page *domain.MonthPage) {
	oldest, err := s.store.OldestTransactionDate(ctx, uid)
	if err != nil {
		s.metrics.IncrExternalError("transactions")
		s.logger.Warn("watermark refresh failed", zap.String("user_id", uid), zap.Error(err))
		return
	}
	page.SetWatermark(oldest)
}

// Invalidate drops the cached page of uid.
func (s *TransactionService) Invalidate(uid string) {
	s.pages.Delete(uid)
}

func (s *TransactionService) publish(ctx context.Context, uid, action string, tx domain.Transaction) {
	evt := domain.TransactionEvent{
		ID:          uuid.New().String(),
		Action:      action,
		UserID:      uid,
		Transaction: tx,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.metrics.IncrEventPublished(evt.RoutingKey(), "error")
		s.logger.Warn("event publish failed",
			zap.String("routing_key", evt.RoutingKey()),
			zap.String("transaction_id", tx.ID),
			zap.Error(err),
		)
		return
	}
	s.metrics.IncrEventPublished(evt.RoutingKey(), "ok")
}
