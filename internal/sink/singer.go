package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/donaldgifford/tap-paypal/internal/store"
	domain "github.com/donaldgifford/tap-paypal/pkg/types"
)

// Singer message types.
const (
	MessageSchema = "SCHEMA"
	MessageRecord = "RECORD"
	MessageState  = "STATE"
)

type schemaMessage struct {
	Type               string         `json:"type"`
	Stream             string         `json:"stream"`
	Schema             map[string]any `json:"schema"`
	KeyProperties      []string       `json:"key_properties"`
	BookmarkProperties []string       `json:"bookmark_properties,omitempty"`
}

type recordMessage struct {
	Type          string          `json:"type"`
	Stream        string          `json:"stream"`
	Record        *domain.FlatRow `json:"record"`
	TimeExtracted string          `json:"time_extracted,omitempty"`
}

type stateMessage struct {
	Type  string      `json:"type"`
	Value store.State `json:"value"`
}

// KeyProperties is the primary key of the invoices stream.
var KeyProperties = []string{"invoice_id", "item_name"}

// Schema returns the JSON schema of the invoices stream.
func Schema() map[string]any {
	str := map[string]any{"type": []string{"string", "null"}}
	num := map[string]any{"type": []string{"number", "null"}}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"invoice_id":       map[string]any{"type": "string"},
			"status":           map[string]any{"type": "string"},
			"invoice_number":   str,
			"invoice_date":     map[string]any{"type": []string{"string", "null"}, "format": "date"},
			"last_update_time": map[string]any{"type": "string", "format": "date-time"},
			"currency_code":    str,
			"note":             str,
			"email":            str,
			"recipient_name":   str,
			"total_invoice":    num,
			"refund_amount":    num,
			"item_name":        map[string]any{"type": "string"},
			"item_qty":         map[string]any{"type": []string{"integer", "null"}},
			"item_unit_price":  num,
			"item_total":       num,
		},
	}
}

// Catalog returns the Singer discovery catalog for the tap.
func Catalog() map[string]any {
	return map[string]any{
		"streams": []map[string]any{
			{
				"tap_stream_id":      domain.StreamInvoices,
				"stream":             domain.StreamInvoices,
				"schema":             Schema(),
				"key_properties":     KeyProperties,
				"replication_key":    domain.ReplicationKey,
				"replication_method": "INCREMENTAL",
				"metadata": []map[string]any{
					{
						"breadcrumb": []string{},
						"metadata": map[string]any{
							"table-key-properties":      KeyProperties,
							"valid-replication-keys":    []string{domain.ReplicationKey},
							"forced-replication-method": "INCREMENTAL",
							"inclusion":                 "available",
							"selected-by-default":       true,
						},
					},
				},
			},
		},
	}
}

// SingerWriter writes Singer messages as JSON lines. The SCHEMA message is
// written once, before the first RECORD or STATE.
type SingerWriter struct {
	mu            sync.Mutex
	buf           *bufio.Writer
	enc           *json.Encoder
	schemaWritten bool
	nowFunc       func() time.Time
}

// SingerOption configures the SingerWriter.
type SingerOption func(*SingerWriter)

// WithSingerNowFunc overrides the time_extracted clock for testing.
func WithSingerNowFunc(f func() time.Time) SingerOption {
	return func(s *SingerWriter) {
		s.nowFunc = f
	}
}

// NewSingerWriter creates a SingerWriter on w, usually stdout.
func NewSingerWriter(w io.Writer, opts ...SingerOption) *SingerWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	s := &SingerWriter{
		buf:     buf,
		enc:     enc,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WriteRow implements Sink.
func (s *SingerWriter) WriteRow(_ context.Context, row *domain.FlatRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeSchema(); err != nil {
		return err
	}
	return s.encode(recordMessage{
		Type:          MessageRecord,
		Stream:        domain.StreamInvoices,
		Record:        row,
		TimeExtracted: s.nowFunc().UTC().Format(time.RFC3339Nano),
	})
}

// WriteState implements Sink. The message is flushed immediately so a target
// sees the bookmark even if the process dies right after.
func (s *SingerWriter) WriteState(_ context.Context, state store.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeSchema(); err != nil {
		return err
	}
	if err := s.encode(stateMessage{Type: MessageState, Value: state}); err != nil {
		return err
	}
	return s.flush()
}

// Flush implements Sink.
func (s *SingerWriter) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *SingerWriter) writeSchema() error {
	if s.schemaWritten {
		return nil
	}
	if err := s.encode(schemaMessage{
		Type:               MessageSchema,
		Stream:             domain.StreamInvoices,
		Schema:             Schema(),
		KeyProperties:      KeyProperties,
		BookmarkProperties: []string{domain.ReplicationKey},
	}); err != nil {
		return err
	}
	s.schemaWritten = true
	return nil
}

func (s *SingerWriter) encode(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("writing singer message: %w", err)
	}
	return nil
}

func (s *SingerWriter) flush() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("flushing singer output: %w", err)
	}
	return nil
}
