package flight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hugr-lab/entityfilter/filter"
	"github.com/hugr-lab/entityfilter/internal/msgpack"
	"github.com/hugr-lab/entityfilter/internal/serialize"
)

// ErrInvalidQuery is returned for tickets and command descriptors that do
// not decode to a usable Query.
var ErrInvalidQuery = errors.New("invalid query")

// Query is the content of a Flight ticket or command descriptor: which
// collection to read and how to narrow it down.
type Query struct {
	// Schema is the schema name (e.g., "main")
	Schema string `msgpack:"schema" json:"schema"`

	// Collection is the collection name (e.g., "people")
	Collection string `msgpack:"collection" json:"collection"`

	// Filter selects the rows to return. Nil or empty returns every row.
	Filter *filter.Filter `msgpack:"filter,omitempty" json:"filter,omitempty"`

	// Columns to project (optional, nil means all columns)
	Columns []string `msgpack:"columns,omitempty" json:"columns,omitempty"`

	// Limit caps the number of returned rows (optional, 0 means no limit)
	Limit int64 `msgpack:"limit,omitempty" json:"limit,omitempty"`
}

func (q *Query) validate() error {
	if q.Schema == "" {
		return fmt.Errorf("%w: schema name cannot be empty", ErrInvalidQuery)
	}
	if q.Collection == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidQuery, q.Limit)
	}
	return nil
}

// ParseCommand decodes the Cmd of a DescriptorCMD. A payload starting
// with '{' is read as JSON, anything else as MessagePack.
func ParseCommand(cmd []byte) (*Query, error) {
	cmd = bytes.TrimSpace(cmd)
	if len(cmd) == 0 {
		return nil, fmt.Errorf("%w: command cannot be empty", ErrInvalidQuery)
	}

	var q Query
	if cmd[0] == '{' {
		if err := json.Unmarshal(cmd, &q); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	} else if err := msgpack.Decode(cmd, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	if err := q.validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// TicketCodec turns queries into opaque tickets and back. Tickets are
// zstd-compressed MessagePack. Safe for concurrent use.
type TicketCodec struct {
	compressor   *serialize.Compressor
	decompressor *serialize.Decompressor
}

// NewTicketCodec creates a codec. Call Close when done.
func NewTicketCodec() (*TicketCodec, error) {
	c, err := serialize.NewCompressor()
	if err != nil {
		return nil, err
	}
	d, err := serialize.NewDecompressor()
	if err != nil {
		c.Close()
		return nil, err
	}
	return &TicketCodec{compressor: c, decompressor: d}, nil
}

// Encode creates an opaque ticket for q.
func (tc *TicketCodec) Encode(q *Query) ([]byte, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Encode(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return tc.compressor.Compress(data)
}

// Decode parses a ticket produced by Encode.
func (tc *TicketCodec) Decode(ticket []byte) (*Query, error) {
	if len(ticket) == 0 {
		return nil, fmt.Errorf("%w: ticket cannot be empty", ErrInvalidQuery)
	}
	data, err := tc.decompressor.Decompress(ticket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	var q Query
	if err := msgpack.Decode(data, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	return &q, nil
}

// Close releases the codec's compression resources.
func (tc *TicketCodec) Close() {
	tc.compressor.Close()
	tc.decompressor.Close()
}
