package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/objkv/lib/db"
	"github.com/ValentinKolb/objkv/lib/db/engines/maple"
	"github.com/ValentinKolb/objkv/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorFormat tests the message and unwrapping of *store.Error
func TestErrorFormat(t *testing.T) {
	cause := fmt.Errorf("%w: key exists", db.ErrConstraint)
	err := &store.Error{Code: store.RetCDuplicateKey, Op: "insert", Store: "users_md", Err: cause}

	assert.Equal(t, "StoreError (code DuplicateKey, insert users_md): constraint violated: key exists", err.Error())
	assert.ErrorIs(t, err, db.ErrConstraint)

	plain := store.NewError(store.RetCInvalidOperation, "page size must be positive")
	assert.Contains(t, plain.Error(), "InvalidOperation")
	assert.Contains(t, plain.Error(), "page size must be positive")
}

// TestCodeOf tests the code helpers
func TestCodeOf(t *testing.T) {
	assert.Equal(t, store.RetCSuccess, store.CodeOf(nil))
	assert.Equal(t, store.RetCInternalError, store.CodeOf(errors.New("boom")))

	wrapped := fmt.Errorf("outer: %w", store.NewError(store.RetCDuplicateKey, "dup"))
	assert.Equal(t, store.RetCDuplicateKey, store.CodeOf(wrapped))
	assert.True(t, store.IsDuplicateKey(wrapped))
	assert.False(t, store.IsNotFound(wrapped))

	assert.True(t, store.IsNotFound(store.NewError(store.RetCUnknownStore, "")))
	assert.True(t, store.IsNotFound(store.NewError(store.RetCUnknownIndex, "")))
	assert.False(t, store.IsNotFound(nil))

	assert.Equal(t, "Unknown", store.RetCode(999).String())
}

// TestDefaultSchema tests the declared stores and indexes
func TestDefaultSchema(t *testing.T) {
	s := store.DefaultSchema()
	require.NoError(t, s.Validate())
	assert.Equal(t, []string{store.StoreUsersMD, store.StoreUsersImg}, s.StoreNames())

	md, ok := s.Store(store.StoreUsersMD)
	require.True(t, ok)
	assert.Equal(t, "uuid", md.KeyPath)
	uuid, _ := md.Index(store.IndexUUID)
	assert.True(t, uuid.Unique)
	text, _ := md.Index(store.IndexContentText)
	assert.False(t, text.Unique)

	img, ok := s.Store(store.StoreUsersImg)
	require.True(t, ok)
	_, ok = img.Index(store.IndexImgBase64)
	assert.True(t, ok)

	_, ok = s.Store("missing")
	assert.False(t, ok)
}

// TestSchemaValidate tests that broken schemas are rejected
func TestSchemaValidate(t *testing.T) {
	assert.ErrorIs(t, store.Schema{}.Validate(), db.ErrData)

	twice := store.DefaultSchema()
	twice.Stores = append(twice.Stores, twice.Stores[0])
	assert.ErrorIs(t, twice.Validate(), db.ErrConstraint)

	noKey := store.Schema{Stores: []db.StoreSchema{{Name: "a"}}}
	assert.ErrorIs(t, noKey.Validate(), db.ErrData)
}

// TestSchemaUpgradeIdempotent tests that the upgrade only adds what is missing
func TestSchemaUpgradeIdempotent(t *testing.T) {
	ctx := context.Background()
	opener := maple.NewOpener(nil)
	schema := store.DefaultSchema()

	database, err := opener(ctx, "idem", 1, schema.Upgrade())
	require.NoError(t, err)
	err = database.Update(ctx, []string{store.StoreUsersMD}, func(tx db.Tx) error {
		s, err := tx.ObjectStore(store.StoreUsersMD)
		if err != nil {
			return err
		}
		_, err = s.Add(db.Record{"uuid": "u-1", "contentText": "kept"})
		return err
	})
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// a partially created schema is completed
	grown := store.DefaultSchema()
	grown.Stores[0].Indexes = append(grown.Stores[0].Indexes, db.IndexSchema{Name: "title", KeyPath: "title"})

	database, err = opener(ctx, "idem", 2, grown.Upgrade())
	require.NoError(t, err, "running the upgrade on an existing schema must not fail")
	defer database.Close()

	err = database.View(ctx, []string{store.StoreUsersMD}, func(tx db.Tx) error {
		s, err := tx.ObjectStore(store.StoreUsersMD)
		if err != nil {
			return err
		}
		assert.Equal(t, []string{store.IndexContentText, "title", store.IndexUUID}, s.IndexNames())
		n, err := s.Count()
		assert.Equal(t, 1, n, "records survive the upgrade")
		return err
	})
	require.NoError(t, err)
}
