package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/logalert/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// sequenceBandwidth is how many IDs each badger sequence leases at a time
const sequenceBandwidth = 100

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig

	seqMu     sync.Mutex
	sequences map[string]*badger.Sequence
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		logger.Error().Err(err).Str("path", config.Path).Msg("BadgerDB: Failed to open database")
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return newBadgerDB(store, logger, config), nil
}

func newBadgerDB(store *badgerhold.Store, logger arbor.ILogger, config *common.BadgerConfig) *BadgerDB {
	return &BadgerDB{
		store:     store,
		logger:    logger,
		config:    config,
		sequences: make(map[string]*badger.Sequence),
	}
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// NextIDs reserves n consecutive IDs for the named entity. IDs start at 1 and never repeat,
// including across restarts.
func (b *BadgerDB) NextIDs(name string, n int) ([]uint64, error) {
	b.seqMu.Lock()
	defer b.seqMu.Unlock()

	seq, ok := b.sequences[name]
	if !ok {
		var err error
		seq, err = b.store.Badger().GetSequence([]byte("logalert_seq:"+name), sequenceBandwidth)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s sequence: %w", name, err)
		}
		b.sequences[name] = seq
	}

	ids := make([]uint64, n)
	for i := range ids {
		next, err := seq.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate %s id: %w", name, err)
		}
		ids[i] = next + 1 // badger sequences start at 0
	}
	return ids, nil
}

// Close releases leased sequences and closes the database connection
func (b *BadgerDB) Close() error {
	b.seqMu.Lock()
	for name, seq := range b.sequences {
		if err := seq.Release(); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("sequence", name).Msg("Failed to release sequence")
		}
	}
	b.sequences = make(map[string]*badger.Sequence)
	b.seqMu.Unlock()

	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
