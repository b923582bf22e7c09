package store

import (
	"time"
)

type TransactionRecord struct {
	ID              uint   `gorm:"primaryKey"`
	ChainID         uint64 `gorm:"uniqueIndex:idx_chain_transaction;not null"`
	TransactionID   string `gorm:"uniqueIndex:idx_chain_transaction;size:128;not null"`
	TransactionHash string `gorm:"size:66"`
	RelayerAddress  string `gorm:"size:42;index"`
	State           string `gorm:"size:32;not null"`
	Message         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (TransactionRecord) TableName() string {
	return "relayer_transactions"
}

// UserOperationRecord is one logical operation bundled into a transaction.
type UserOperationRecord struct {
	ID                         uint   `gorm:"primaryKey"`
	ChainID                    uint64 `gorm:"index:idx_userop_transaction;uniqueIndex:idx_chain_userop;not null"`
	TransactionID              string `gorm:"index:idx_userop_transaction;size:128;not null"`
	UserOpHash                 string `gorm:"uniqueIndex:idx_chain_userop;size:66;not null"`
	Sender                     string `gorm:"size:42"`
	EntryPoint                 string `gorm:"size:42"`
	State                      string `gorm:"size:32"`
	TransactionHash            string `gorm:"size:66"`
	Success                    bool
	ActualGasCost              string
	ActualGasUsed              string
	BlockNumber                uint64
	Receipt                    string
	FrontRunnedTransactionHash string `gorm:"size:66"`
	FrontRunnedReceipt         string
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (UserOperationRecord) TableName() string {
	return "relayer_user_operations"
}
