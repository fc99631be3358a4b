package reports

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/balanca-pos/balanca/internal/shared"
)

// RepositoryPort abstracts the aggregation queries.
type RepositoryPort interface {
	ListActivity(ctx context.Context, companyID int64, outletIDs []int64, from, toExcl time.Time) ([]AccountActivity, error)
	AccountActivity(ctx context.Context, companyID, accountID int64, outletIDs []int64, from, toExcl time.Time) (AccountActivity, error)
	AccountLines(ctx context.Context, q GLQuery, toExcl time.Time) ([]GLLine, error)
	NetBeforeOffset(ctx context.Context, q GLQuery, toExcl time.Time) (float64, float64, error)
}

// Service is the ledger query engine: read-only, side-effect-free report
// generation with caching.
type Service struct {
	repo  RepositoryPort
	cache *shared.ReportCache
	group singleflight.Group
}

// NewService constructs the query engine. cache may be nil.
func NewService(repo RepositoryPort, cache *shared.ReportCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// defaultRound is applied when the caller does not specify precision.
const defaultRound = int32(2)

func normalize(q *Query) {
	if q.Round == 0 {
		q.Round = defaultRound
	}
}

// toExclusive converts the inclusive DateTo into an exclusive timestamp bound.
func toExclusive(dateTo time.Time) time.Time {
	return dateTo.AddDate(0, 0, 1)
}

// TrialBalance lists per-account debit/credit totals over the period.
func (s *Service) TrialBalance(ctx context.Context, q Query) (TBReport, error) {
	normalize(&q)
	if err := q.validate(); err != nil {
		return TBReport{}, err
	}
	key := shared.ReportKey("tb", q.CompanyID, q.OutletIDs, q.DateFrom, q.DateTo, q.Round)
	var cached TBReport
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	result, err, _ := s.doOnce(ctx, key, func(ctx context.Context) (any, error) {
		activity, err := s.repo.ListActivity(ctx, q.CompanyID, q.OutletIDs, q.DateFrom, toExclusive(q.DateTo))
		if err != nil {
			return nil, err
		}
		report := BuildTrialBalance(activity, q.Round)
		s.cache.Set(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return TBReport{}, err
	}
	return result.(TBReport), nil
}

// Worksheet splits the trial balance into balance sheet and P&L columns.
func (s *Service) Worksheet(ctx context.Context, q Query) (WSReport, error) {
	normalize(&q)
	if err := q.validate(); err != nil {
		return WSReport{}, err
	}
	key := shared.ReportKey("ws", q.CompanyID, q.OutletIDs, q.DateFrom, q.DateTo, q.Round)
	var cached WSReport
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	result, err, _ := s.doOnce(ctx, key, func(ctx context.Context) (any, error) {
		activity, err := s.repo.ListActivity(ctx, q.CompanyID, q.OutletIDs, q.DateFrom, toExclusive(q.DateTo))
		if err != nil {
			return nil, err
		}
		report := BuildWorksheet(activity, q.Round)
		s.cache.Set(ctx, key, report)
		return report, nil
	})
	if err != nil {
		return WSReport{}, err
	}
	return result.(WSReport), nil
}

// GeneralLedger returns the account's balance summary plus one page of
// chronological lines with running balances. Pages are not cached; the line
// ordering guarantees identical pages across repeated queries.
func (s *Service) GeneralLedger(ctx context.Context, q GLQuery) (GLReport, error) {
	normalize(&q.Query)
	if err := q.validate(); err != nil {
		return GLReport{}, err
	}
	if q.AccountID == 0 {
		return GLReport{}, ErrAccountRequired
	}
	if q.LineLimit <= 0 || q.LineLimit > 500 {
		q.LineLimit = 100
	}
	if q.LineOffset < 0 {
		q.LineOffset = 0
	}
	toExcl := toExclusive(q.DateTo)
	var (
		activity                AccountActivity
		lines                   []GLLine
		priorDebit, priorCredit float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activity, err = s.repo.AccountActivity(gctx, q.CompanyID, q.AccountID, q.OutletIDs, q.DateFrom, toExcl)
		return err
	})
	g.Go(func() error {
		var err error
		lines, err = s.repo.AccountLines(gctx, q, toExcl)
		return err
	})
	g.Go(func() error {
		var err error
		priorDebit, priorCredit, err = s.repo.NetBeforeOffset(gctx, q, toExcl)
		return err
	})
	if err := g.Wait(); err != nil {
		return GLReport{}, err
	}
	return BuildGeneralLedger(activity, lines, priorDebit, priorCredit, q.Round), nil
}

func (s *Service) doOnce(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
