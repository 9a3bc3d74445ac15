package core

import (
	"fmt"

	"github.com/ValentinKolb/objkv/lib/db"
)

// cursor implements db.Cursor over a store bucket or an index bucket.
// It does not hold a driver cursor between steps: every move seeks from the
// successor of the current bucket key, which keeps it correct when records
// are deleted or written while iterating.
type cursor struct {
	store  *objectStore
	bucket Bucket
	index  bool
	r      *db.KeyRange

	valid bool
	pos   []byte // bucket key of the current entry
	key   db.Key
	pk    db.Key
}

func newCursor(s *objectStore, b Bucket, index bool, r *db.KeyRange) (*cursor, error) {
	c := &cursor{store: s, bucket: b, index: index, r: r}
	if err := c.seek(r.Start()); err != nil {
		return nil, err
	}
	return c, nil
}

// seek positions the cursor on the first entry at or after from that lies in the range.
func (c *cursor) seek(from []byte) error {
	c.valid = false
	for {
		k, v, err := c.bucket.Seek(from)
		if err != nil || k == nil {
			return err
		}

		key := db.Key(k)
		if c.index {
			head, _, err := db.SplitKey(k)
			if err != nil {
				return fmt.Errorf("corrupt entry in index of %q: %w", c.store.name, err)
			}
			key = head
		}
		if c.r.AboveUpper(key) {
			return nil
		}
		if c.r.BelowLower(key) {
			from = successor(k)
			continue
		}

		c.valid, c.pos, c.key = true, k, key
		if c.index {
			c.pk = v
		} else {
			c.pk = key
		}
		return nil
	}
}

func (c *cursor) positioned() error {
	if err := c.store.tx.active(); err != nil {
		return err
	}
	if !c.valid {
		return fmt.Errorf("%w: cursor is not positioned on a record", db.ErrData)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.Cursor)
// --------------------------------------------------------------------------

func (c *cursor) Valid() bool {
	return c.valid && !c.store.tx.done
}

func (c *cursor) Key() db.Key {
	return c.key
}

func (c *cursor) PrimaryKey() db.Key {
	return c.pk
}

func (c *cursor) Value() (db.Record, error) {
	if err := c.positioned(); err != nil {
		return nil, err
	}
	data, err := c.store.data()
	if err != nil {
		return nil, err
	}
	raw, err := data.Get(c.pk)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: record %s is gone", db.ErrNotFound, c.pk)
	}
	record, err := c.store.tx.db.codec.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", c.pk, err)
	}
	return record, nil
}

func (c *cursor) Continue() error {
	if err := c.positioned(); err != nil {
		return err
	}
	return c.seek(successor(c.pos))
}

func (c *cursor) Advance(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: advance count must be positive, got %d", db.ErrData, n)
	}
	if err := c.positioned(); err != nil {
		return err
	}
	for i := 0; i < n && c.valid; i++ {
		if err := c.seek(successor(c.pos)); err != nil {
			return err
		}
	}
	return nil
}

func (c *cursor) Delete() error {
	if err := c.store.tx.writable(); err != nil {
		return err
	}
	if err := c.positioned(); err != nil {
		return err
	}
	if err := c.store.deleteKey(c.pk); err != nil {
		return err
	}
	if c.index {
		// drop the entry under the cursor even if no reference pointed to it
		return c.bucket.Delete(c.pos)
	}
	return nil
}
