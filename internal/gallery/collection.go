package gallery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"media-gallery/internal/logging"
)

// QueryAllMediaID is the id lower bound that selects all media.
const QueryAllMediaID = -1

// Index is the content index as the collection consumes it. Rows come back
// in the projection's positional column order.
type Index interface {
	DimensionWriter
	Query(ctx context.Context, table string, columns []string, minID int64, orderBy string) (*sql.Rows, error)
	QueryByID(ctx context.Context, table string, columns []string, id int64) (*sql.Rows, error)
	Delete(ctx context.Context, table string, id int64) error
}

// Rotator is the outbound rotation boundary: rewrite the record's file
// rotated by 90 degrees and update its index row. The core does not
// implement the write path; it only triggers it and refreshes afterwards.
type Rotator interface {
	Rotate(ctx context.Context, record *Record, clockwise bool) error
}

// ErrRotationUnsupported is returned for kinds the rotation pipeline cannot
// handle.
var ErrRotationUnsupported = errors.New("rotation not supported for this media kind")

type recordKey struct {
	kind Kind
	id   int64
}

// Collection owns the gallery's records: it builds them from index rows,
// hands them out in display order, and replaces them wholesale when the
// decode path or the rotation pipeline invalidates one.
type Collection struct {
	index   Index
	builder *Builder
	loader  *Loader
	rotator Rotator

	mu      sync.RWMutex
	records []*Record
	byKey   map[recordKey]*Record
}

// NewCollection wires a collection to its index and loader. The loader's
// refresh requests are routed back here.
func NewCollection(index Index, loader *Loader, builder *Builder) *Collection {
	c := &Collection{
		index:   index,
		builder: builder,
		loader:  loader,
		byKey:   make(map[recordKey]*Record),
	}
	if loader != nil {
		loader.SetRefresher(c)
	}
	return c
}

// SetRotator installs the rotation pipeline implementation.
func (c *Collection) SetRotator(r Rotator) {
	c.rotator = r
}

// Load queries both media tables for items with id greater than minID
// (QueryAllMediaID for everything) and replaces the collection's contents.
// Rows that fail to build are skipped and logged, never fatal.
func (c *Collection) Load(ctx context.Context, minID int64) error {
	var loaded []*Record

	for _, kind := range []Kind{KindPhoto, KindVideo} {
		records, err := c.queryKind(ctx, kind, minID)
		if err != nil {
			return fmt.Errorf("loading %s records: %w", kind, err)
		}
		loaded = append(loaded, records...)
	}

	sortRecords(loaded)

	c.mu.Lock()
	c.records = loaded
	c.byKey = make(map[recordKey]*Record, len(loaded))
	for _, r := range loaded {
		c.byKey[recordKey{r.Kind(), r.ContentID()}] = r
	}
	c.mu.Unlock()

	logging.Info("Collection loaded: %d records", len(loaded))
	return nil
}

func (c *Collection) queryKind(ctx context.Context, kind Kind, minID int64) ([]*Record, error) {
	rows, err := c.index.Query(ctx, kind.Table(), Columns(kind), minID, QueryOrder)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close %s query: %v", kind.Table(), err)
		}
	}()

	var records []*Record
	for rows.Next() {
		record, buildErr := c.builder.Build(kind, rows)
		if buildErr != nil {
			// Skip the row; a bad row must never take down the collection.
			logging.Error("Error loading data: %v", buildErr)
			continue
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Records returns a snapshot of the collection in display order
// (date taken descending, id descending).
func (c *Collection) Records() []*Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// Get returns the current record for a (kind, id) key.
func (c *Collection) Get(kind Kind, id int64) (*Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byKey[recordKey{kind, id}]
	return r, ok
}

// Len returns the number of records held.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// RequestRefresh asynchronously re-queries one item and replaces its record.
// Implements the loader's Refresher contract; must not block the dispatcher.
func (c *Collection) RequestRefresh(kind Kind, id int64) {
	go func() {
		if err := c.Refresh(context.Background(), kind, id); err != nil {
			logging.Warn("Refresh of %s/%d failed: %v", kind.Table(), id, err)
		}
	}()
}

// Refresh re-runs the single-row query for one item and replaces the stored
// record with a freshly built one. The item is dropped from the collection
// when the row is gone or no longer buildable.
func (c *Collection) Refresh(ctx context.Context, kind Kind, id int64) error {
	rows, err := c.index.QueryByID(ctx, kind.Table(), Columns(kind), id)
	if err != nil {
		return fmt.Errorf("refresh query for %s/%d: %w", kind.Table(), id, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn("failed to close refresh query: %v", err)
		}
	}()

	var fresh *Record
	if rows.Next() {
		record, buildErr := c.builder.Build(kind, rows)
		if buildErr != nil {
			logging.Error("Error rebuilding %s/%d: %v", kind.Table(), id, buildErr)
		} else {
			fresh = record
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	c.replace(recordKey{kind, id}, fresh)
	return nil
}

// replace swaps in a rebuilt record, or drops the item when fresh is nil.
func (c *Collection) replace(key recordKey, fresh *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.byKey[key]
	if !ok {
		if fresh != nil {
			c.records = append(c.records, fresh)
			c.byKey[key] = fresh
			sortRecords(c.records)
		}
		return
	}

	if fresh == nil {
		delete(c.byKey, key)
		for i, r := range c.records {
			if r == old {
				c.records = append(c.records[:i], c.records[i+1:]...)
				break
			}
		}
		return
	}

	// Carry the usage over: the surface showing the old record is still
	// visible and wants the corrected thumbnail. Requests that prepared the
	// old record directly keep their own hold and release it themselves.
	if old.InUse() {
		fresh.Prepare()
	}
	old.Recycle()

	c.byKey[key] = fresh
	for i, r := range c.records {
		if r == old {
			c.records[i] = fresh
			break
		}
	}
	sortRecords(c.records)
}

// Delete removes the item's index row and its file, and drops the record.
func (c *Collection) Delete(ctx context.Context, record *Record) error {
	key := recordKey{record.Kind(), record.ContentID()}

	if err := c.index.Delete(ctx, record.Kind().Table(), record.ContentID()); err != nil {
		return fmt.Errorf("deleting index row %s/%d: %w", record.Kind().Table(), record.ContentID(), err)
	}

	if err := os.Remove(record.Path()); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove file %s: %v", record.Path(), err)
	}

	c.replace(key, nil)
	return nil
}

// Rotate triggers the rotation pipeline for a record and, on success,
// replaces it with the freshly built result. Returns
// ErrRotationUnsupported for kinds the pipeline cannot handle (videos).
func (c *Collection) Rotate(ctx context.Context, record *Record, clockwise bool) error {
	if !record.RotationSupported() {
		logging.Error("Unexpected rotation request for %s", record)
		return ErrRotationUnsupported
	}
	if c.rotator == nil {
		return ErrRotationUnsupported
	}

	if err := c.rotator.Rotate(ctx, record, clockwise); err != nil {
		return fmt.Errorf("rotating %s/%d: %w", record.Kind().Table(), record.ContentID(), err)
	}

	return c.Refresh(ctx, record.Kind(), record.ContentID())
}

// sortRecords orders newest first, ties broken by id, matching QueryOrder.
func sortRecords(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DateTaken() != records[j].DateTaken() {
			return records[i].DateTaken() > records[j].DateTaken()
		}
		return records[i].ContentID() > records[j].ContentID()
	})
}
