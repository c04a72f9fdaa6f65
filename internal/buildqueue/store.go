package buildqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/paulcbetts/peasant/internal/blobcache"
)

const (
	queuedPrefix = "queued/"
	resultPrefix = "result/"
)

// ErrNoRecord is returned by record lookups when the key doesn't exist.
var ErrNoRecord = errors.New("no such build record")

// RecordStore is the durable record store: a two-key lifecycle per build
// over a key→blob cache. A record lives under queued/<id> until its
// terminal outcome is written under result/<id>; the transition is
// write-then-delete, so a crash can leave both keys but never neither.
type RecordStore struct {
	cache blobcache.Cache
}

// NewRecordStore creates a record store over the given cache.
func NewRecordStore(cache blobcache.Cache) *RecordStore {
	if cache == nil {
		panic("NewRecordStore: cache is required")
	}
	return &RecordStore{cache: cache}
}

// PutQueued durably writes the record under queued/<id>.
func (s *RecordStore) PutQueued(ctx context.Context, rec *BuildRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.cache.Put(ctx, queuedKey(rec.ID), data); err != nil {
		return fmt.Errorf("put queued/%d: %w", rec.ID, err)
	}
	return nil
}

// PutResult durably writes the record under result/<id>. The record must
// carry an exit code.
func (s *RecordStore) PutResult(ctx context.Context, rec *BuildRecord) error {
	if rec.ExitCode == nil {
		return fmt.Errorf("result record %d has no exit code", rec.ID)
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.cache.Put(ctx, resultKey(rec.ID), data); err != nil {
		return fmt.Errorf("put result/%d: %w", rec.ID, err)
	}
	return nil
}

// InvalidateQueued removes queued/<id>. Removing an absent key is not an
// error, so the call is safe to repeat after a crash.
func (s *RecordStore) InvalidateQueued(ctx context.Context, id uint64) error {
	err := s.cache.Delete(ctx, queuedKey(id))
	if err != nil && !blobcache.IsNotFound(err) {
		return fmt.Errorf("invalidate queued/%d: %w", id, err)
	}
	return nil
}

// GetQueued retrieves queued/<id>, or ErrNoRecord.
func (s *RecordStore) GetQueued(ctx context.Context, id uint64) (*BuildRecord, error) {
	return s.get(ctx, queuedKey(id))
}

// GetResult retrieves result/<id>, or ErrNoRecord.
func (s *RecordStore) GetResult(ctx context.Context, id uint64) (*BuildRecord, error) {
	return s.get(ctx, resultKey(id))
}

func (s *RecordStore) get(ctx context.Context, key string) (*BuildRecord, error) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if blobcache.IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNoRecord)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return decodeRecord(data)
}

// ListQueued returns all queued records in ascending id order.
func (s *RecordStore) ListQueued(ctx context.Context) ([]*BuildRecord, error) {
	keys, err := s.cache.List(ctx, queuedPrefix)
	if err != nil {
		return nil, fmt.Errorf("list queued records: %w", err)
	}

	ids := make([]uint64, 0, len(keys))
	for _, key := range keys {
		id, ok := parseID(key, queuedPrefix)
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]*BuildRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetQueued(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNoRecord) {
				continue // deleted between List and Get
			}
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// MaxID returns the highest build id present under either key prefix, or
// zero when the store is empty.
func (s *RecordStore) MaxID(ctx context.Context) (uint64, error) {
	var max uint64
	for _, prefix := range []string{queuedPrefix, resultPrefix} {
		keys, err := s.cache.List(ctx, prefix)
		if err != nil {
			return 0, fmt.Errorf("list %s records: %w", strings.TrimSuffix(prefix, "/"), err)
		}
		for _, key := range keys {
			if id, ok := parseID(key, prefix); ok && id > max {
				max = id
			}
		}
	}
	return max, nil
}

func queuedKey(id uint64) string { return queuedPrefix + strconv.FormatUint(id, 10) }
func resultKey(id uint64) string { return resultPrefix + strconv.FormatUint(id, 10) }

func parseID(key, prefix string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(key, prefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
