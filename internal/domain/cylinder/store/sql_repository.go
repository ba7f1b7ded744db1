// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuGH/cylinderd/internal/domain/cylinder/model"
)

// sqlRepository holds the queries shared by the sqlite and postgres backends.
// Timestamps are stored as unix nanoseconds; 0 means unset.
type sqlRepository struct {
	db *sql.DB
	// dollar rewrites ? placeholders to $n for postgres.
	dollar bool
	// isDuplicate reports whether err is a primary-key violation.
	isDuplicate func(error) bool
}

const (
	cylinderColumns = `serial, gas_type, capacity, owner_id, status, holder_id,
		charging_expiry_ns, last_inspection_ns, deleted, updated_at_ns`
	transactionColumns = `id, serial, type, counterparty_id, worker_id, memo, occurred_at_ns`
)

func (r *sqlRepository) q(query string) string {
	if !r.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCylinder(s scanner) (*model.Cylinder, error) {
	var (
		c                         model.Cylinder
		status                    string
		expiry, inspected, update int64
		deleted                   bool
	)
	if err := s.Scan(&c.Serial, &c.GasType, &c.Capacity, &c.OwnerID, &status, &c.HolderID,
		&expiry, &inspected, &deleted, &update); err != nil {
		return nil, err
	}
	c.Status = model.Status(status)
	c.ChargingExpiry = fromNS(expiry)
	c.LastInspection = fromNS(inspected)
	c.Deleted = deleted
	c.UpdatedAt = fromNS(update)
	return &c, nil
}

func scanTransaction(s scanner) (model.Transaction, error) {
	var (
		tx  model.Transaction
		typ string
		at  int64
	)
	if err := s.Scan(&tx.ID, &tx.Serial, &typ, &tx.CounterpartyID, &tx.WorkerID, &tx.Memo, &at); err != nil {
		return model.Transaction{}, err
	}
	tx.Type = model.TxType(typ)
	tx.Timestamp = fromNS(at)
	return tx, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *sqlRepository) upsertCylinder(ctx context.Context, ex execer, c model.Cylinder) error {
	query := r.q(`
	INSERT INTO cylinders (` + cylinderColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(serial) DO UPDATE SET
		gas_type = excluded.gas_type,
		capacity = excluded.capacity,
		owner_id = excluded.owner_id,
		status = excluded.status,
		holder_id = excluded.holder_id,
		charging_expiry_ns = excluded.charging_expiry_ns,
		last_inspection_ns = excluded.last_inspection_ns,
		deleted = excluded.deleted,
		updated_at_ns = excluded.updated_at_ns
	`)
	_, err := ex.ExecContext(ctx, query,
		c.Serial, c.GasType, c.Capacity, c.OwnerID, string(c.Status), c.HolderID,
		toNS(c.ChargingExpiry), toNS(c.LastInspection), c.Deleted, toNS(c.UpdatedAt),
	)
	return err
}

func (r *sqlRepository) insertTransaction(ctx context.Context, ex execer, tx model.Transaction) error {
	query := r.q(`INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := ex.ExecContext(ctx, query,
		tx.ID, tx.Serial, string(tx.Type), tx.CounterpartyID, tx.WorkerID, tx.Memo, toNS(tx.Timestamp))
	if err != nil && r.isDuplicate != nil && r.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (r *sqlRepository) GetCylinder(ctx context.Context, serial string) (*model.Cylinder, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+cylinderColumns+` FROM cylinders WHERE serial = ?`),
		model.NormalizeSerial(serial))
	c, err := scanCylinder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cylinder: %w", err)
	}
	return c, nil
}

func (r *sqlRepository) PutCylinder(ctx context.Context, c *model.Cylinder) error {
	if c == nil {
		return errors.New("nil cylinder")
	}
	if err := r.upsertCylinder(ctx, r.db, canonical(c)); err != nil {
		return fmt.Errorf("put cylinder: %w", err)
	}
	return nil
}

func (r *sqlRepository) ListCylinders(ctx context.Context) ([]*model.Cylinder, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cylinderColumns+` FROM cylinders ORDER BY serial`)
	if err != nil {
		return nil, fmt.Errorf("list cylinders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Cylinder
	for rows.Next() {
		c, err := scanCylinder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cylinder: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *sqlRepository) History(ctx context.Context, serial string) ([]model.Transaction, error) {
	return r.queryTransactions(ctx,
		r.q(`SELECT `+transactionColumns+` FROM transactions WHERE serial = ? ORDER BY occurred_at_ns, id`),
		model.NormalizeSerial(serial))
}

func (r *sqlRepository) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY occurred_at_ns, id`)
}

func (r *sqlRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *sqlRepository) AppendTransaction(ctx context.Context, tx model.Transaction) error {
	if err := r.insertTransaction(ctx, r.db, canonicalTx(tx)); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (r *sqlRepository) Commit(ctx context.Context, tx model.Transaction, snapshot *model.Cylinder) error {
	if snapshot == nil {
		return errors.New("nil snapshot")
	}
	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	if err := r.insertTransaction(ctx, dbtx, canonicalTx(tx)); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("commit: append: %w", err)
	}
	if err := r.upsertCylinder(ctx, dbtx, canonical(snapshot)); err != nil {
		return fmt.Errorf("commit: snapshot: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *sqlRepository) Close() error {
	return r.db.Close()
}
