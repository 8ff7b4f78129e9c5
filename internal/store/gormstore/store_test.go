package gormstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/staffhub/internal/database/testutil"
	"github.com/charlesng35/staffhub/internal/store"
	"github.com/charlesng35/staffhub/internal/store/gormstore"
	"github.com/charlesng35/staffhub/internal/store/storetest"
)

func TestGormStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
		s, err := gormstore.New(db)
		require.NoError(t, err)
		return s
	})
}

func TestNewRequiresDB(t *testing.T) {
	_, err := gormstore.New(nil)
	require.Error(t, err)
}
