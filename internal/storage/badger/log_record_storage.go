package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/interfaces"
	"github.com/ternarybob/logalert/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

const recordSequence = "LogRecord"

// LogRecordStorage implements the LogRecordStorage interface for Badger
type LogRecordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewLogRecordStorage creates a new LogRecordStorage instance
func NewLogRecordStorage(db *BadgerDB, logger arbor.ILogger) interfaces.LogRecordStorage {
	return &LogRecordStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LogRecordStorage) GetMostRecentRecord(ctx context.Context) (*models.LogRecord, error) {
	var records []models.LogRecord
	query := new(badgerhold.Query).SortBy("Timestamp", "ID").Reverse().Limit(1)
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to query most recent record: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// AppendRecords writes the whole batch in a single badger transaction: either every record is
// stored or none is.
func (s *LogRecordStorage) AppendRecords(ctx context.Context, records []models.LogRecord) ([]models.LogRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids, err := s.db.NextIDs(recordSequence, len(records))
	if err != nil {
		return nil, err
	}

	stored := make([]models.LogRecord, len(records))
	copy(stored, records)
	for i := range stored {
		stored[i].ID = ids[i]
		stored[i].Timestamp = stored[i].Timestamp.UTC()
	}

	err = s.db.Store().Badger().Update(func(tx *badger.Txn) error {
		for i := range stored {
			if err := s.db.Store().TxInsert(tx, stored[i].ID, &stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrTxnTooBig) {
			return nil, fmt.Errorf("record batch of %d exceeds transaction size: %w", len(stored), err)
		}
		return nil, fmt.Errorf("failed to append records: %w", err)
	}

	return stored, nil
}

func (s *LogRecordStorage) GetRecord(ctx context.Context, id uint64) (*models.LogRecord, error) {
	var record models.LogRecord
	if err := s.db.Store().Get(id, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("record %d: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

func (s *LogRecordStorage) CountRecords(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.LogRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}

func (s *LogRecordStorage) DeleteRecordsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("Timestamp").Lt(cutoff.UTC())

	count, err := s.db.Store().Count(&models.LogRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired records: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.LogRecord{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}
	return int(count), nil
}
