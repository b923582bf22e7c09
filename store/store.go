package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	relayer "github.com/bcnmy/bundler-sub000"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

type StateUpdate struct {
	TransactionID   string
	TransactionHash common.Hash
	RelayerAddress  common.Address
	State           relayer.TransactionState
	Message         string
}

type DB struct {
	lggr logger.Logger
	db   *gorm.DB
}

// Open connects with the named driver ("sqlite" or "postgres") and migrates
// the schema.
func Open(lggr logger.Logger, driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(lggr, db)
}

func New(lggr logger.Logger, db *gorm.DB) (*DB, error) {
	if err := db.AutoMigrate(&TransactionRecord{}, &UserOperationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return &DB{lggr: logger.Named(lggr, "Store"), db: db}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpdateState records a state change for a transaction, creating the record on
// first sight. Empty hash, relayer and message fields leave stored values as is.
func (d *DB) UpdateState(ctx context.Context, chainID uint64, u StateUpdate) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec TransactionRecord
		err := tx.Where("chain_id = ? AND transaction_id = ?", chainID, u.TransactionID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = TransactionRecord{ChainID: chainID, TransactionID: u.TransactionID, State: relayer.StateUnknown.String()}
		} else if err != nil {
			return err
		}

		current, err := relayer.ParseTransactionState(rec.State)
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(u.State) {
			return fmt.Errorf("%w: %s -> %s (transaction: %s)", ErrInvalidTransition, current, u.State, u.TransactionID)
		}

		rec.State = u.State.String()
		if u.TransactionHash != (common.Hash{}) {
			rec.TransactionHash = u.TransactionHash.Hex()
		}
		if u.RelayerAddress != (common.Address{}) {
			rec.RelayerAddress = u.RelayerAddress.Hex()
		}
		if u.Message != "" {
			rec.Message = u.Message
		}
		return tx.Save(&rec).Error
	})
}

func (d *DB) GetTransaction(ctx context.Context, chainID uint64, transactionID string) (*TransactionRecord, error) {
	var rec TransactionRecord
	err := d.db.WithContext(ctx).Where("chain_id = ? AND transaction_id = ?", chainID, transactionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *DB) SaveUserOperations(ctx context.Context, chainID uint64, ops []UserOperationRecord) error {
	if len(ops) == 0 {
		return nil
	}
	for i := range ops {
		ops[i].ChainID = chainID
	}
	return d.db.WithContext(ctx).Create(&ops).Error
}

func (d *DB) GetUserOperationsByTransactionID(ctx context.Context, chainID uint64, transactionID string) ([]UserOperationRecord, error) {
	var ops []UserOperationRecord
	err := d.db.WithContext(ctx).
		Where("chain_id = ? AND transaction_id = ?", chainID, transactionID).
		Order("id").
		Find(&ops).Error
	return ops, err
}

func (d *DB) UpdateUserOperation(ctx context.Context, op *UserOperationRecord) error {
	if op.ID == 0 {
		return errors.New("user operation has no id")
	}
	return d.db.WithContext(ctx).Save(op).Error
}
