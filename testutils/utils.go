package testutils

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/bcnmy/bundler-sub000/store"
)

// Mnemonic is the well known development mnemonic. Its first account is
// 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
const Mnemonic = "test test test test test test test test test test test junk"

func Ptr[T any](v T) *T {
	return &v
}

// NewStore opens a private in-memory sqlite store closed with the test.
func NewStore(t *testing.T) *store.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := store.Open(logger.Test(t), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
