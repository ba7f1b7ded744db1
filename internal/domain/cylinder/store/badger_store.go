// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
	"github.com/dgraph-io/badger/v4"
)

// BadgerRepository keeps the log in an embedded LSM store.
//
// Keys:
//   - cyl/<serial>              cylinder JSON
//   - tx/<serial>/<ns>/<id>     transaction JSON
//   - txid/<id>                 tx key (uniqueness index)
type BadgerRepository struct {
	db *badger.DB
}

// OpenBadgerRepository opens path; "" or ":memory:" yields an in-memory instance.
func OpenBadgerRepository(path string) (*BadgerRepository, error) {
	var opts badger.Options
	if path == "" || path == ":memory:" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

func (s *BadgerRepository) Close() error { return s.db.Close() }

func cylKey(serial string) []byte { return []byte("cyl/" + serial) }

func txKey(tx model.Transaction) []byte {
	return []byte(fmt.Sprintf("tx/%s/%020d/%s", tx.Serial, toNS(tx.Timestamp), tx.ID))
}

func txIDKey(id string) []byte { return []byte("txid/" + id) }

func (s *BadgerRepository) GetCylinder(ctx context.Context, serial string) (*model.Cylinder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out model.Cylinder
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cylKey(model.NormalizeSerial(serial)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func putCylinder(txn *badger.Txn, c model.Cylinder) error {
	buf, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return txn.Set(cylKey(c.Serial), buf)
}

func (s *BadgerRepository) PutCylinder(ctx context.Context, c *model.Cylinder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil {
		return errors.New("nil cylinder")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return putCylinder(txn, canonical(c))
	})
}

func (s *BadgerRepository) ListCylinders(ctx context.Context) ([]*model.Cylinder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*model.Cylinder
	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, []byte("cyl/"), func(val []byte) error {
			var c model.Cylinder
			if err := json.Unmarshal(val, &c); err != nil {
				return err
			}
			out = append(out, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortCylinders(out)
	return out, nil
}

func (s *BadgerRepository) History(ctx context.Context, serial string) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	serial = model.NormalizeSerial(serial)
	txs, err := s.scanTransactions([]byte("tx/" + serial + "/"))
	if err != nil {
		return nil, err
	}
	// A serial containing "/" can share a prefix with another serial.
	out := txs[:0]
	for _, tx := range txs {
		if tx.Serial == serial {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *BadgerRepository) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.scanTransactions([]byte("tx/"))
}

func (s *BadgerRepository) scanTransactions(prefix []byte) ([]model.Transaction, error) {
	var out []model.Transaction
	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, prefix, func(val []byte) error {
			var tx model.Transaction
			if err := json.Unmarshal(val, &tx); err != nil {
				return err
			}
			out = append(out, tx)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortLog(out)
	return out, nil
}

func iteratePrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func appendTx(txn *badger.Txn, tx model.Transaction) error {
	if _, err := txn.Get(txIDKey(tx.ID)); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	buf, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	key := txKey(tx)
	if err := txn.Set(key, buf); err != nil {
		return err
	}
	return txn.Set(txIDKey(tx.ID), key)
}

func (s *BadgerRepository) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return appendTx(txn, canonicalTx(tx))
	})
}

func (s *BadgerRepository) Commit(ctx context.Context, tx model.Transaction, snapshot *model.Cylinder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := appendTx(txn, canonicalTx(tx)); err != nil {
			return err
		}
		if err := putCylinder(txn, canonical(snapshot)); err != nil {
			return err
		}
		// An error here discards the txn, so a caller past its deadline never half-commits.
		return ctx.Err()
	})
}
