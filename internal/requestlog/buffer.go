// Package requestlog batches per-request audit records: a non-blocking
// enqueue, a drain triggered by whichever comes first of a 3s timer or 50
// queued entries, a single batch insert, and a best-effort identifier
// backfill pass over the rows just written.
package requestlog

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pranems/scimserver/internal/storage"
)

const (
	drainInterval = 3 * time.Second
	drainCount    = 50
)

// Record is the raw shape handed to Enqueue; Buffer turns it into a
// storage.RequestLogEntry and derives the identifier after insert.
type Record struct {
	EndpointID      string
	Method          string
	URL             string
	Status          int
	Duration        time.Duration
	RequestHeaders  string
	RequestBody     string
	ResponseHeaders string
	ResponseBody    string
	ErrorMessage    string
	ErrorStack      string
	// ResponseIdentifierHint and RequestIdentifierHint carry the
	// resource-level fields (userName/displayName/emails/externalId)
	// that the request pipeline extracts from the response and request
	// bodies (server.identifierHint), so the buffer itself does not parse
	// bodies.
	ResponseIdentifierHint string
	RequestIdentifierHint  string
}

// Buffer is the in-memory queue. One Buffer is shared process-wide.
type Buffer struct {
	store *storage.Store

	mu      sync.Mutex
	pending []Record

	flushCh chan struct{}
	cron    *cron.Cron
	stopped chan struct{}
	wg      sync.WaitGroup
}

func New(store *storage.Store) *Buffer {
	return &Buffer{
		store:   store,
		flushCh: make(chan struct{}, 1),
		cron:    cron.New(cron.WithSeconds()),
		stopped: make(chan struct{}),
	}
}

// Start launches the background drain loop. The cron entry fires the timer
// arm of the drain race every 3s; Enqueue fires the count arm directly when
// the queue hits drainCount.
func (b *Buffer) Start() {
	b.cron.AddFunc("@every 3s", func() { b.requestFlush() })
	b.cron.Start()

	b.wg.Add(1)
	go b.loop()
}

func (b *Buffer) loop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.flushCh:
			b.drain()
		case <-b.stopped:
			b.drain()
			return
		}
	}
}

func (b *Buffer) requestFlush() {
	select {
	case b.flushCh <- struct{}{}:
	default:
	}
}

// Enqueue never blocks the caller: it appends under a short-lived mutex and
// signals a drain once the queue is full.
func (b *Buffer) Enqueue(r Record) {
	b.mu.Lock()
	b.pending = append(b.pending, r)
	full := len(b.pending) >= drainCount
	b.mu.Unlock()

	if full {
		b.requestFlush()
	}
}

func (b *Buffer) drain() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	entries := make([]storage.RequestLogEntry, len(batch))
	now := time.Now().UTC()
	for i, r := range batch {
		var endpointID *string
		if r.EndpointID != "" {
			id := r.EndpointID
			endpointID = &id
		}
		var errMsg, errStack *string
		if r.ErrorMessage != "" {
			errMsg = &r.ErrorMessage
		}
		if r.ErrorStack != "" {
			errStack = &r.ErrorStack
		}
		entries[i] = storage.RequestLogEntry{
			EndpointID:      endpointID,
			Method:          strings.ToUpper(r.Method),
			URL:             r.URL,
			Status:          r.Status,
			DurationMs:      r.Duration.Milliseconds(),
			RequestHeaders:  r.RequestHeaders,
			RequestBody:     r.RequestBody,
			ResponseHeaders: r.ResponseHeaders,
			ResponseBody:    r.ResponseBody,
			ErrorMessage:    errMsg,
			ErrorStack:      errStack,
			CreatedAt:       now,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, err := b.store.InsertRequestLogs(ctx, entries)
	if err != nil {
		return
	}

	for i, id := range ids {
		identifier := deriveIdentifier(batch[i])
		if identifier == "" {
			continue
		}
		b.store.UpdateRequestLogIdentifier(ctx, id, identifier)
	}
}

// Flush forces an immediate synchronous drain; used on shutdown to
// guarantee every enqueued record is persisted.
func (b *Buffer) Flush() {
	b.drain()
}

// Stop halts the drain loop after flushing whatever is pending.
func (b *Buffer) Stop() {
	b.cron.Stop()
	close(b.stopped)
	b.wg.Wait()
}

var uuidRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// deriveIdentifier picks the most human-readable label for a request log
// row: for /Groups, response displayName -> request displayName -> the
// UUID trailing the URL; for everything else, response identifier hint ->
// request identifier hint -> the UUID trailing the URL.
func deriveIdentifier(r Record) string {
	if strings.Contains(r.URL, "/Groups") {
		if r.ResponseIdentifierHint != "" {
			return r.ResponseIdentifierHint
		}
		if r.RequestIdentifierHint != "" {
			return r.RequestIdentifierHint
		}
		return uuidRe.FindString(r.URL)
	}

	if r.ResponseIdentifierHint != "" {
		return r.ResponseIdentifierHint
	}
	if r.RequestIdentifierHint != "" {
		return r.RequestIdentifierHint
	}
	return uuidRe.FindString(r.URL)
}
