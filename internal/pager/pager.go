// Package pager walks paginated list endpoints lazily. A Fetcher turns one
// PageRequest into a Sequence of items that follows continuation tokens
// until the collection is exhausted or an item limit is reached, issuing one
// request at a time and only when the consumer asks for more.
//
// Failures are reported so that nothing is silently lost: a transport or
// server failure mid-traversal ends the sequence with *FetchInterrupted,
// which carries the token to resume from, and an unparseable page ends it
// with *MalformedPage.
package pager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/happycod3r/ytapi/internal/youtube"
)

// Unbounded requests every item in the collection.
const Unbounded = -1

// ErrConsumed is yielded when a Sequence is iterated a second time.
var ErrConsumed = errors.New("pager: sequence already consumed")

// Lister fetches a single page. *youtube.Client implements it.
type Lister interface {
	ListPage(ctx context.Context, req youtube.PageRequest) (*youtube.Page, error)
}

// FetchInterrupted ends a traversal that failed for a transient reason.
// Reissuing the original request with ResumeToken as its page token yields
// exactly the items that were not delivered.
type FetchInterrupted struct {
	// ResumeToken is the continuation token of the request that failed;
	// empty when the very first page failed.
	ResumeToken string
	// Page is the 1-based number of the failed page within this traversal.
	Page int
	// Fetched counts the items delivered before the failure.
	Fetched int
	Err     error
}

func (e *FetchInterrupted) Error() string {
	return fmt.Sprintf("pager: fetch interrupted at page %d after %d items (resume token %q): %v",
		e.Page, e.Fetched, e.ResumeToken, e.Err)
}

func (e *FetchInterrupted) Unwrap() error {
	return e.Err
}

// MalformedPage ends a traversal whose page could not be decoded or lacked a
// required item field. The page is not partially delivered.
type MalformedPage struct {
	Page      int
	PageToken string
	Err       error
}

func (e *MalformedPage) Error() string {
	return fmt.Sprintf("pager: malformed page %d: %v", e.Page, e.Err)
}

func (e *MalformedPage) Unwrap() error {
	return e.Err
}

// Fetcher creates Sequences over a Lister.
type Fetcher struct {
	lister Lister
	logger *slog.Logger
}

// New returns a Fetcher reading pages from lister.
func New(lister Lister, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Fetcher{lister: lister, logger: logger}
}

// Fetch prepares a traversal of req yielding at most limit items. A negative
// limit means Unbounded; zero yields nothing and issues no request. Nothing
// is fetched until the Sequence is iterated.
func (f *Fetcher) Fetch(ctx context.Context, req youtube.PageRequest, limit int) *Sequence {
	if limit < 0 {
		limit = Unbounded
	}

	return &Sequence{f: f, ctx: ctx, req: req, limit: limit}
}

// Sequence is a single-use, lazily fetched stream of items.
type Sequence struct {
	f     *Fetcher
	ctx   context.Context
	req   youtube.PageRequest
	limit int

	consumed atomic.Bool
	next     string
	pages    int
}

// All returns the items as an iterator. Errors end the iteration and are
// yielded with a zero Item. Breaking out early stops fetching.
func (s *Sequence) All() iter.Seq2[youtube.Item, error] {
	return func(yield func(youtube.Item, error) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			yield(youtube.Item{}, ErrConsumed)
			return
		}

		s.run(yield)
	}
}

// Collect drains the sequence. On error it returns the items delivered so
// far together with the error.
func (s *Sequence) Collect() ([]youtube.Item, error) {
	var items []youtube.Item

	for it, err := range s.All() {
		if err != nil {
			return items, err
		}

		items = append(items, it)
	}

	return items, nil
}

// NextPageToken is the continuation token at which a completed traversal
// stopped because the limit was reached. It is empty when the collection was
// exhausted, and only meaningful after iteration has finished.
func (s *Sequence) NextPageToken() string {
	return s.next
}

// Pages reports how many pages were requested.
func (s *Sequence) Pages() int {
	return s.pages
}

func (s *Sequence) run(yield func(youtube.Item, error) bool) {
	logger := s.f.logger.With(slog.String("resource", s.req.Resource))

	if s.limit == 0 {
		logger.Debug("item limit is zero, nothing to fetch")
		return
	}

	token := s.req.PageToken
	fetched := 0

	for {
		if err := s.ctx.Err(); err != nil {
			yield(youtube.Item{}, &FetchInterrupted{ResumeToken: token, Page: s.pages + 1, Fetched: fetched, Err: err})
			return
		}

		req := s.req.WithPageToken(token).WithPageSize(s.pageSize(fetched))
		s.pages++

		page, err := s.f.lister.ListPage(s.ctx, req)
		if err != nil {
			logger.Warn("page fetch failed",
				slog.Int("page", s.pages),
				slog.Int("fetched", fetched),
				slog.String("error", err.Error()),
			)

			yield(youtube.Item{}, s.classify(err, token, fetched))

			return
		}

		for _, it := range page.Items {
			if s.limitReached(fetched) {
				break
			}

			if !yield(it, nil) {
				return
			}

			fetched++
		}

		if page.NextPageToken == "" {
			logger.Debug("collection exhausted", slog.Int("pages", s.pages), slog.Int("items", fetched))
			return
		}

		if s.limitReached(fetched) {
			s.next = page.NextPageToken
			logger.Debug("item limit reached", slog.Int("pages", s.pages), slog.Int("items", fetched))

			return
		}

		token = page.NextPageToken
	}
}

// pageSize shrinks the request near the limit so the last page asks for
// exactly the remaining items.
func (s *Sequence) pageSize(fetched int) int {
	size := s.req.PageSize

	if s.limit != Unbounded {
		remaining := s.limit - fetched
		if size <= 0 || size > remaining {
			size = remaining
		}
	}

	return min(size, youtube.MaxPageSize)
}

func (s *Sequence) limitReached(fetched int) bool {
	return s.limit != Unbounded && fetched >= s.limit
}

// classify wraps a page failure. Transient failures become FetchInterrupted,
// decoding failures MalformedPage; anything else (quota, not found, auth)
// is returned unchanged since resuming would fail the same way.
func (s *Sequence) classify(err error, token string, fetched int) error {
	switch {
	case errors.Is(err, youtube.ErrMalformedPage):
		return &MalformedPage{Page: s.pages, PageToken: token, Err: err}
	case youtube.IsTransient(err) || s.ctx.Err() != nil:
		return &FetchInterrupted{ResumeToken: token, Page: s.pages, Fetched: fetched, Err: err}
	default:
		return err
	}
}
