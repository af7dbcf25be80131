package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/tap-paypal/internal/paypal"
	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePages serves fixed pages and records the requested window.
type fakePages struct {
	pages [][]paypal.SearchResultItem
	err   error

	// block, when set, is received from before the first page.
	block   chan struct{}
	started chan struct{}

	mu        sync.Mutex
	startDate string
	endDate   string
}

func (f *fakePages) Pages(_ context.Context, startDate, endDate string) iter.Seq2[[]paypal.SearchResultItem, error] {
	return func(yield func([]paypal.SearchResultItem, error) bool) {
		f.mu.Lock()
		f.startDate, f.endDate = startDate, endDate

		block := f.block
		if f.started != nil {
			close(f.started)
			f.started = nil
		}
		f.mu.Unlock()

		if block != nil {
			<-block
		}

		for _, p := range f.pages {
			if !yield(p, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func (f *fakePages) window() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startDate, f.endDate
}

// fakeDetails returns a prepared document or error per invoice ID.
type fakeDetails struct {
	docs  map[string]*paypal.InvoiceDetail
	errs  map[string]error
	delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (f *fakeDetails) FetchDetail(ctx context.Context, item paypal.SearchResultItem) (*paypal.InvoiceDetail, error) {
	f.mu.Lock()
	f.calls = append(f.calls, item.ID)
	f.mu.Unlock()

	if err, ok := f.errs[item.ID]; ok {
		return nil, err
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &paypal.DetailFetchError{InvoiceID: item.ID, Err: ctx.Err()}
		}
	}
	if doc, ok := f.docs[item.ID]; ok {
		return doc, nil
	}
	return nil, &paypal.DetailFetchError{InvoiceID: item.ID, StatusCode: 404, Body: "not found"}
}

func (f *fakeDetails) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// memState is an in-memory StateStore.
type memState struct {
	mu    sync.Mutex
	value string
	saves int
	err   error
}

func (m *memState) GetBookmark(_ context.Context, stream string) (*domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.value == "" {
		return nil, nil
	}
	return &domain.Bookmark{Stream: stream, ReplicationKey: domain.ReplicationKey, Value: m.value}, nil
}

func (m *memState) SaveBookmark(_ context.Context, _, _, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.saves++
	return nil
}

// memRuns is an in-memory RunStore.
type memRuns struct {
	mu        sync.Mutex
	runs      map[string]domain.SyncRun
	recovered int
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]domain.SyncRun)}
}

func (m *memRuns) InsertSyncRun(_ context.Context, run *domain.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memRuns) CompleteSyncRun(_ context.Context, run *domain.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.ID]
	if !ok {
		return fmt.Errorf("run %s not found", run.ID)
	}
	stored.Status = run.Status
	stored.ErrorText = run.ErrorText
	stored.RowsEmitted = run.RowsEmitted
	stored.Skipped = run.Skipped
	stored.BookmarkTime = run.BookmarkTime
	m.runs[run.ID] = stored
	return nil
}

func (m *memRuns) ListSyncRuns(context.Context, int) ([]domain.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SyncRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memRuns) RecoverStaleSyncRuns(context.Context, time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered++
	return 0, nil
}

func (m *memRuns) get(id string) domain.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

// captureSink records everything written to it.
type captureSink struct {
	mu      sync.Mutex
	rows    []domain.FlatRow
	states  []store.State
	flushes int
}

func (c *captureSink) WriteRow(_ context.Context, row *domain.FlatRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, *row)
	return nil
}

func (c *captureSink) WriteState(_ context.Context, s store.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
	return nil
}

func (c *captureSink) Flush(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushes++
	return nil
}

func (c *captureSink) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.rows))
	for i := range c.rows {
		keys = append(keys, c.rows[i].InvoiceID+"/"+c.rows[i].ItemName)
	}
	return keys
}

// invoice builds a valid detail document with the given line item names.
func invoice(t *testing.T, id, lastUpdate string, items ...string) *paypal.InvoiceDetail {
	t.Helper()

	itemJSON := make([]string, 0, len(items))
	for _, name := range items {
		itemJSON = append(itemJSON, fmt.Sprintf(
			`{"name": %q, "quantity": "1", "unit_amount": {"currency_code": "USD", "value": "2.50"}}`,
			name,
		))
	}

	doc := fmt.Sprintf(`{
		"id": %q,
		"status": "PAID",
		"detail": {
			"invoice_number": "0001",
			"invoice_date": "2024-03-01",
			"currency_code": "USD",
			"metadata": {"last_update_time": %q}
		},
		"items": [%s],
		"amount": {"currency_code": "USD", "value": "10.00"}
	}`, id, lastUpdate, strings.Join(itemJSON, ","))

	var d paypal.InvoiceDetail
	require.NoError(t, json.Unmarshal([]byte(doc), &d))
	return &d
}

func results(ids ...string) []paypal.SearchResultItem {
	items := make([]paypal.SearchResultItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, paypal.SearchResultItem{
			ID:         id,
			Status:     "PAID",
			DetailLink: "https://api.example.com/v2/invoicing/invoices/" + id,
		})
	}
	return items
}

type testDeps struct {
	pages   *fakePages
	details *fakeDetails
	state   *memState
	runs    *memRuns
	sink    *captureSink
}

func newDeps() *testDeps {
	return &testDeps{
		pages:   &fakePages{},
		details: &fakeDetails{docs: map[string]*paypal.InvoiceDetail{}, errs: map[string]error{}},
		state:   &memState{},
		runs:    newMemRuns(),
		sink:    &captureSink{},
	}
}

func (d *testDeps) engine(opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithLogger(quietLogger()),
		WithNowFunc(func() time.Time { return testNow }),
		WithRunStore(d.runs),
	}
	return NewEngine(d.pages, d.details, d.state, d.sink, append(base, opts...)...)
}

func TestNewEngine_Defaults(t *testing.T) {
	t.Parallel()

	d := newDeps()
	eng := NewEngine(d.pages, d.details, d.state, d.sink)

	assert.Equal(t, 1, eng.concurrency)
	assert.NotNil(t, eng.log)
	assert.NotNil(t, eng.tracer)
	assert.NotEmpty(t, eng.lockHolder)
	assert.Equal(t, time.Hour, eng.lockTTL)
	assert.Nil(t, eng.runs)
	assert.Nil(t, eng.locker)
}

func TestWithDetailConcurrency_Minimum(t *testing.T) {
	t.Parallel()

	d := newDeps()
	assert.Equal(t, 1, d.engine(WithDetailConcurrency(0)).concurrency)
	assert.Equal(t, 8, d.engine(WithDetailConcurrency(8)).concurrency)
}

func TestRunSync_EmitsRowsAndSavesBookmark(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1", "INV-2")}
	d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z", "A", "B")
	d.details.docs["INV-2"] = invoice(t, "INV-2", "2024-03-06T08:00:00Z")

	res, err := d.engine().RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"INV-1/", "INV-1/A", "INV-1/B", "INV-2/"}, d.sink.keys())
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 2, res.Invoices)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, "2024-03-06T08:00:00Z", res.Bookmark)
	assert.NotEmpty(t, res.RunID)

	// No bookmark or configured start: the window is yesterday..today.
	assert.Equal(t, "2024-03-09", res.StartDate)
	assert.Equal(t, "2024-03-10", res.EndDate)
	start, end := d.pages.window()
	assert.Equal(t, "2024-03-09", start)
	assert.Equal(t, "2024-03-10", end)

	assert.Equal(t, "2024-03-06T08:00:00Z", d.state.value)
	assert.Equal(t, 1, d.state.saves)
	require.Len(t, d.sink.states, 1)
	assert.Equal(t,
		store.NewState(domain.StreamInvoices, domain.ReplicationKey, "2024-03-06T08:00:00Z"),
		d.sink.states[0],
	)
	assert.Equal(t, 1, d.sink.flushes)

	run := d.runs.get(res.RunID)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, 4, run.RowsEmitted)
	assert.Equal(t, "2024-03-06T08:00:00Z", run.BookmarkTime)
	assert.Equal(t, "2024-03-09", run.StartDate)
}

func TestRunSync_Window(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		persisted  string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{
			name:      "bookmark wins over configured start",
			persisted: "2024-03-05T23:30:00Z",
			start:     "2024-01-01",
			wantStart: "2024-03-05",
			wantEnd:   "2024-03-10",
		},
		{
			name:      "configured start without bookmark",
			start:     "2024-01-01T00:00:00Z",
			wantStart: "2024-01-01",
			wantEnd:   "2024-03-10",
		},
		{
			name:      "configured end",
			start:     "2024-01-01",
			end:       "2024-02-01",
			wantStart: "2024-01-01",
			wantEnd:   "2024-02-01",
		},
		{
			name:      "offset bookmark uses earlier date",
			persisted: "2024-03-05T01:00:00+02:00",
			wantStart: "2024-03-04",
			wantEnd:   "2024-03-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := newDeps()
			d.state.value = tt.persisted

			res, err := d.engine(WithDateRange(tt.start, tt.end)).RunSync(context.Background())
			require.NoError(t, err)

			start, end := d.pages.window()
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
			assert.Equal(t, tt.wantStart, res.StartDate)
			assert.Equal(t, tt.wantEnd, res.EndDate)
		})
	}
}

func TestRunSync_InvalidDates(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.state.value = "not-a-time"

	_, err := d.engine().RunSync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing bookmark")
	assert.Zero(t, d.state.saves)
}

func TestRunSync_NoRowsKeepsBookmark(t *testing.T) {
	t.Parallel()

	t.Run("first run", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		res, err := d.engine().RunSync(context.Background())
		require.NoError(t, err)

		assert.Empty(t, res.Bookmark)
		assert.Zero(t, d.state.saves)
		assert.Empty(t, d.sink.states, "no state without a bookmark")
	})

	t.Run("resumed run", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		d.state.value = "2024-03-05T10:00:00Z"

		res, err := d.engine().RunSync(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "2024-03-05T10:00:00Z", res.Bookmark)
		require.Len(t, d.sink.states, 1)
	})
}

func TestRunSync_BookmarkNeverRegresses(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.state.value = "2024-03-05T12:00:00Z"
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1")}
	d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T09:00:00Z")

	res, err := d.engine().RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rows, "re-scanned day still emits its rows")
	assert.Equal(t, "2024-03-05T12:00:00Z", res.Bookmark)
	assert.Equal(t, "2024-03-05T12:00:00Z", d.state.value)
}

func TestRunSync_SkipsRecoverableErrors(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1", "INV-2", "INV-3", "INV-4")}
	d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z")
	d.details.errs["INV-2"] = &paypal.DetailFetchError{InvoiceID: "INV-2", StatusCode: 500, Body: "boom"}
	// Missing last_update_time cannot be flattened.
	d.details.docs["INV-3"] = invoice(t, "INV-3", "")
	d.details.docs["INV-4"] = invoice(t, "INV-4", "2024-03-07T10:00:00Z", "X")

	res, err := d.engine().RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"INV-1/", "INV-4/", "INV-4/X"}, d.sink.keys())
	assert.Equal(t, 2, res.Invoices)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, "2024-03-07T10:00:00Z", res.Bookmark)
	assert.Equal(t, 2, d.runs.get(res.RunID).Skipped)
}

func TestRunSync_FatalErrors(t *testing.T) {
	t.Parallel()

	authErr := &paypal.AuthError{StatusCode: 401, Body: "invalid_client"}
	pageErr := &paypal.PageFetchError{Page: 2, StatusCode: 503, Body: "unavailable"}

	tests := []struct {
		name     string
		setup    func(t *testing.T, d *testDeps)
		wantRows []string
		check    func(t *testing.T, err error)
	}{
		{
			name: "auth error during detail fetch",
			setup: func(t *testing.T, d *testDeps) {
				d.pages.pages = [][]paypal.SearchResultItem{results("INV-1", "INV-2", "INV-3")}
				d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z")
				d.details.errs["INV-2"] = authErr
				d.details.docs["INV-3"] = invoice(t, "INV-3", "2024-03-06T10:00:00Z")
			},
			wantRows: []string{"INV-1/"},
			check: func(t *testing.T, err error) {
				var target *paypal.AuthError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, 401, target.StatusCode)
			},
		},
		{
			name: "page error after first page",
			setup: func(t *testing.T, d *testDeps) {
				d.pages.pages = [][]paypal.SearchResultItem{results("INV-1")}
				d.pages.err = pageErr
				d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z")
			},
			wantRows: []string{"INV-1/"},
			check: func(t *testing.T, err error) {
				var target *paypal.PageFetchError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, 2, target.Page)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := newDeps()
			d.state.value = "2024-03-01T00:00:00Z"
			tt.setup(t, d)

			res, err := d.engine().RunSync(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, tt.wantRows, d.sink.keys())
			assert.Equal(t, "2024-03-01T00:00:00Z", d.state.value, "bookmark unchanged")
			assert.Zero(t, d.state.saves)
			assert.Empty(t, d.sink.states)
			assert.Equal(t, 1, d.sink.flushes, "emitted rows are still flushed")

			run := d.runs.get(res.RunID)
			assert.Equal(t, domain.RunStatusFailed, run.Status)
			assert.NotEmpty(t, run.ErrorText)
		})
	}
}

func TestRunSync_StateLoadError(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.state.err = errors.New("connection refused")

	_, err := d.engine().RunSync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading bookmark")
	assert.Empty(t, d.details.called())
}

func TestRunSync_ConcurrentDetailsKeepOrder(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) *testDeps {
		t.Helper()
		d := newDeps()
		d.details.delay = 5 * time.Millisecond
		var pages [][]paypal.SearchResultItem
		for p := range 3 {
			var ids []string
			for i := range 5 {
				id := fmt.Sprintf("INV-%d-%d", p, i)
				ids = append(ids, id)
				d.details.docs[id] = invoice(t, id, fmt.Sprintf("2024-03-0%dT1%d:00:00Z", p+1, i), "A")
			}
			pages = append(pages, results(ids...))
		}
		d.pages.pages = pages
		return d
	}

	seq := build(t)
	_, err := seq.engine().RunSync(context.Background())
	require.NoError(t, err)

	par := build(t)
	res, err := par.engine(WithDetailConcurrency(4)).RunSync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, seq.sink.keys(), par.sink.keys())
	assert.Len(t, par.sink.keys(), 30)
	assert.Equal(t, "2024-03-03T14:00:00Z", res.Bookmark)
}

func TestRunSync_ConcurrentFatalReportsCause(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.details.delay = time.Second
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1", "INV-2", "INV-3", "INV-4")}
	for _, id := range []string{"INV-1", "INV-3", "INV-4"} {
		d.details.docs[id] = invoice(t, id, "2024-03-05T10:00:00Z")
	}
	d.details.errs["INV-2"] = &paypal.AuthError{StatusCode: 401, Body: "expired"}

	_, err := d.engine(WithDetailConcurrency(4)).RunSync(context.Background())

	var target *paypal.AuthError
	require.ErrorAs(t, err, &target, "in-flight fetches are canceled, not skipped")
	assert.Empty(t, d.sink.keys())
}

func TestExtract_DraftsNeverFetched(t *testing.T) {
	t.Parallel()

	d := newDeps()
	// The paginator drops drafts; only what it yields is fetched.
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1")}
	d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z")

	x := d.engine().Extract(context.Background(), "2024-03-01", "2024-03-10")
	for _, err := range x.Rows() {
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"INV-1"}, d.details.called())
}

func TestExtract_SingleUse(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1")}
	d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z", "A")

	x := d.engine().Extract(context.Background(), "2024-03-01", "2024-03-10")

	var n int
	for _, err := range x.Rows() {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, x.Invoices())
	assert.Equal(t, "2024-03-05T10:00:00Z", x.Bookmark())

	var errs []error
	for _, err := range x.Rows() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], paypal.ErrSequenceConsumed)
	assert.Len(t, d.details.called(), 1, "second iteration issues no requests")
}

func TestExtract_EarlyBreak(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1", "INV-2"), results("INV-3")}
	d.details.docs["INV-1"] = invoice(t, "INV-1", "2024-03-05T10:00:00Z", "A")
	d.details.docs["INV-2"] = invoice(t, "INV-2", "2024-03-06T10:00:00Z")
	d.details.docs["INV-3"] = invoice(t, "INV-3", "2024-03-07T10:00:00Z")

	x := d.engine().Extract(context.Background(), "2024-03-01", "2024-03-10")
	for row, err := range x.Rows() {
		require.NoError(t, err)
		if row.ItemName == "A" {
			break
		}
	}

	assert.Equal(t, []string{"INV-1"}, d.details.called())
	assert.Equal(t, "2024-03-05T10:00:00Z", x.Bookmark())
}

func TestExtract_CanceledContext(t *testing.T) {
	t.Parallel()

	d := newDeps()
	d.details.delay = time.Second
	d.pages.pages = [][]paypal.SearchResultItem{results("INV-1", "INV-2")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var errs []error
	for _, err := range d.engine().Extract(ctx, "2024-03-01", "2024-03-10").Rows() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
}

func TestRunSync_InProgress(t *testing.T) {
	t.Parallel()

	d := newDeps()
	block, started := make(chan struct{}), make(chan struct{})
	d.pages.block = block
	d.pages.started = started
	eng := d.engine()

	done := make(chan error, 1)
	go func() {
		_, err := eng.RunSync(context.Background())
		done <- err
	}()

	<-started
	_, err := eng.RunSync(context.Background())
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(block)
	require.NoError(t, <-done)

	_, err = eng.RunSync(context.Background())
	assert.NoError(t, err, "engine is free again")
}

type fakeLocker struct {
	mu       sync.Mutex
	grant    bool
	err      error
	acquired []string
	released []string
}

func (f *fakeLocker) AcquireSyncLock(_ context.Context, holder string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.grant {
		f.acquired = append(f.acquired, holder)
	}
	return f.grant, nil
}

func (f *fakeLocker) ReleaseSyncLock(_ context.Context, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, holder)
	return nil
}

func TestRunSync_Locker(t *testing.T) {
	t.Parallel()

	t.Run("granted", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		l := &fakeLocker{grant: true}

		_, err := d.engine(WithLocker(l, "replica-1", time.Minute)).RunSync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"replica-1"}, l.acquired)
		assert.Equal(t, []string{"replica-1"}, l.released)
	})

	t.Run("held elsewhere", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		l := &fakeLocker{grant: false}

		_, err := d.engine(WithLocker(l, "replica-2", time.Minute)).RunSync(context.Background())
		require.ErrorIs(t, err, ErrSyncInProgress)
		assert.Empty(t, l.released)
		assert.Empty(t, d.runs.runs, "no run recorded")
	})

	t.Run("lock error", func(t *testing.T) {
		t.Parallel()

		d := newDeps()
		l := &fakeLocker{err: errors.New("db down")}

		_, err := d.engine(WithLocker(l, "", 0)).RunSync(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSyncInProgress)
	})
}
