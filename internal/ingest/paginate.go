package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"sgbus/internal/datamall"
	"sgbus/internal/storage"
)

// StopReason explains why a paginated fetch ended.
type StopReason string

const (
	StopEmptyPage    StopReason = "empty_page"
	StopShortPage    StopReason = "short_page"
	StopGuardrailHit StopReason = "guardrail_hit"
)

// ErrGuardrailExceeded matches every GuardrailError through errors.Is.
var ErrGuardrailExceeded = errors.New("ingest: page guardrail exceeded")

// GuardrailError reports a run aborted because the upstream kept returning
// full pages past the configured page limit.
type GuardrailError struct {
	Resource storage.Resource
	Endpoint string
	Pages    int
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("ingest %s: guardrail hit after %d full pages from %s without reaching the last page",
		e.Resource, e.Pages, e.Endpoint)
}

func (e *GuardrailError) Is(target error) bool { return target == ErrGuardrailExceeded }

// Summary describes one paginated run.
type Summary struct {
	Endpoint       string
	PagesFetched   int
	RecordsFetched int
	StopReason     StopReason // empty when a fetch failed
}

// Pager walks an upstream collection page by page.
type Pager struct {
	getter   datamall.Getter
	pageSize int
	logger   *slog.Logger
}

// NewPager creates a Pager using the upstream page size.
func NewPager(getter datamall.Getter, logger *slog.Logger) *Pager {
	return &Pager{getter: getter, pageSize: datamall.PageSize, logger: logger}
}

// FetchAll pages through endpoint with the $skip offset until an empty or
// short page. maxPages <= 0 means unbounded; otherwise reaching maxPages full
// pages first fails the run with a GuardrailError and discards everything
// fetched. One summary line is logged per call whatever the outcome.
func FetchAll[T any](ctx context.Context, p *Pager, res storage.Resource, endpoint string, maxPages int) (records []T, sum Summary, err error) {
	sum.Endpoint = endpoint
	defer func() {
		attrs := []any{
			"resource", res,
			"endpoint", sum.Endpoint,
			"pages_fetched", sum.PagesFetched,
			"records_fetched", sum.RecordsFetched,
			"stop_reason", string(sum.StopReason),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		p.logger.Info("pagination finished", attrs...)
	}()

	for {
		if maxPages > 0 && sum.PagesFetched >= maxPages {
			sum.StopReason = StopGuardrailHit
			return nil, sum, &GuardrailError{Resource: res, Endpoint: endpoint, Pages: sum.PagesFetched}
		}

		query := url.Values{datamall.SkipParam: {strconv.Itoa(sum.PagesFetched * p.pageSize)}}
		page, ferr := datamall.Fetch[datamall.Envelope[T]](ctx, p.getter, endpoint, query)
		if ferr != nil {
			return nil, sum, fmt.Errorf("ingest %s page %d: %w", res, sum.PagesFetched+1, ferr)
		}
		sum.PagesFetched++

		if len(page.Value) == 0 {
			sum.StopReason = StopEmptyPage
			return records, sum, nil
		}
		records = append(records, page.Value...)
		sum.RecordsFetched = len(records)

		if len(page.Value) < p.pageSize {
			sum.StopReason = StopShortPage
			return records, sum, nil
		}
	}
}
