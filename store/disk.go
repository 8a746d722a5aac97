package store

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var cursorsBucket = []byte("cursors")

// Disk is the embedded key/value Store backend. One bbolt file holds every
// PDA's cursor; each Put runs in its own write transaction so cursor advance
// is atomic per PDA and durable once Put returns.
type Disk struct {
	db *bolt.DB
}

func OpenDisk(path string) (*Disk, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open cursor store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create cursors bucket")
	}
	return &Disk{db: db}, nil
}

func (d *Disk) Get(pda solana.PublicKey) (Cursor, bool, error) {
	var raw []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cursorsBucket).Get(pda.Bytes())
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Cursor{}, false, errors.Wrap(err, "read cursor")
	}
	if raw == nil {
		return Cursor{}, false, nil
	}
	c, err := decodeCursor(raw)
	if err != nil {
		// Unknown version or truncated record: absent, not fatal.
		return Cursor{}, false, nil
	}
	return c, true, nil
}

func (d *Disk) Put(pda solana.PublicKey, c Cursor) error {
	raw := encodeCursor(c)
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cursorsBucket).Put(pda.Bytes(), raw)
	})
	return errors.Wrap(err, "write cursor")
}

func (d *Disk) Remove(pda solana.PublicKey) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cursorsBucket).Delete(pda.Bytes())
	})
	return errors.Wrap(err, "delete cursor")
}

func (d *Disk) Keys() ([]solana.PublicKey, error) {
	var keys []solana.PublicKey
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(cursorsBucket).ForEach(func(k, _ []byte) error {
			pda := solana.PublicKeyFromBytes(k)
			keys = append(keys, pda)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list cursors")
	}
	return keys, nil
}

func (d *Disk) Close() error { return d.db.Close() }
