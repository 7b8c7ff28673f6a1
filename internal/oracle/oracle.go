// Package oracle is a reference implementation of the segment average query
// on SQLite. It loads the three tables into an in-memory database and answers
// queries with a plain SQL join, independent of the engine's parser and
// indexes.
package oracle

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arkilian/segavg/internal/parser"
	"github.com/arkilian/segavg/internal/tblfile"
)

// Tables locates the three input tables.
type Tables struct {
	Customer string
	Orders   string
	LineItem string
}

// Answer is the oracle's result for one segment.
type Answer struct {
	Segment string
	// Known is false when no customer carries the segment.
	Known   bool
	Count   int64
	Sum     int64
	Average int64
}

// NoData reports whether the segment has no reachable line items.
func (a Answer) NoData() bool {
	return !a.Known || a.Count == 0
}

// Oracle holds the loaded tables.
type Oracle struct {
	db    *sql.DB
	scale int64
}

var schemaSQL = []string{
	`CREATE TABLE customer (custkey INTEGER NOT NULL, segment TEXT NOT NULL)`,
	`CREATE TABLE orders (orderkey INTEGER NOT NULL, custkey INTEGER NOT NULL)`,
	`CREATE TABLE lineitem (orderkey INTEGER NOT NULL, quantity INTEGER NOT NULL)`,
	`CREATE INDEX idx_customer_segment ON customer(segment)`,
	`CREATE INDEX idx_orders_custkey ON orders(custkey)`,
	`CREATE INDEX idx_lineitem_orderkey ON lineitem(orderkey)`,
}

// Load reads the tables into a fresh in-memory database. Quantities are
// multiplied by scale at query time; a non-positive scale selects
// parser.ScaleFactor.
func Load(ctx context.Context, t Tables, scale int64) (*Oracle, error) {
	if scale <= 0 {
		scale = parser.ScaleFactor
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("oracle: failed to open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	o := &Oracle{db: db, scale: scale}
	if err := o.load(ctx, t); err != nil {
		db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Oracle) load(ctx context.Context, t Tables) error {
	for _, stmt := range schemaSQL {
		if _, err := o.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("oracle: failed to create schema: %w", err)
		}
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("oracle: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	loads := []struct {
		path   string
		insert string
		schema parser.Schema
		text   bool
	}{
		{t.Customer, `INSERT INTO customer (custkey, segment) VALUES (?, ?)`, parser.CustomerSchema, true},
		{t.Orders, `INSERT INTO orders (orderkey, custkey) VALUES (?, ?)`, parser.OrderSchema, false},
		{t.LineItem, `INSERT INTO lineitem (orderkey, quantity) VALUES (?, ?)`, parser.LineItemSchema, false},
	}
	for _, l := range loads {
		if err := loadTable(ctx, tx, l.path, l.insert, l.schema, l.text); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("oracle: failed to commit: %w", err)
	}
	return nil
}

func loadTable(ctx context.Context, tx *sql.Tx, path, insert string, schema parser.Schema, textValue bool) error {
	f, err := tblfile.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("oracle: failed to prepare insert for %s: %w", schema.Table, err)
	}
	defer stmt.Close()

	sc := bufio.NewScanner(bytes.NewReader(f.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "|")
		if len(fields) <= schema.KeyField || len(fields) <= schema.ValueField {
			return fmt.Errorf("oracle: %s line %d: too few fields", schema.Table, line)
		}
		key, err := strconv.ParseUint(fields[schema.KeyField], 10, 63)
		if err != nil {
			return fmt.Errorf("oracle: %s line %d: %w", schema.Table, line, err)
		}

		var value interface{} = fields[schema.ValueField]
		if !textValue {
			v, err := strconv.ParseUint(fields[schema.ValueField], 10, 63)
			if err != nil {
				return fmt.Errorf("oracle: %s line %d: %w", schema.Table, line, err)
			}
			value = int64(v)
		}

		if _, err := stmt.ExecContext(ctx, int64(key), value); err != nil {
			return fmt.Errorf("oracle: failed to insert into %s: %w", schema.Table, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("oracle: failed to read %s: %w", path, err)
	}
	return nil
}

// Customers are deduplicated per segment; orders and line items are joined
// row by row.
const averageSQL = `
	SELECT COUNT(l.quantity), COALESCE(SUM(l.quantity * ?), 0)
	FROM orders o
	JOIN lineitem l ON l.orderkey = o.orderkey
	WHERE o.custkey IN (SELECT DISTINCT custkey FROM customer WHERE segment = ?)
`

// Average answers the segment average query.
func (o *Oracle) Average(ctx context.Context, segment string) (Answer, error) {
	ans := Answer{Segment: segment}

	var exists int
	err := o.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM customer WHERE segment = ?)`, segment).Scan(&exists)
	if err != nil {
		return Answer{}, fmt.Errorf("oracle: failed to look up segment %q: %w", segment, err)
	}
	if exists == 0 {
		return ans, nil
	}
	ans.Known = true

	if err := o.db.QueryRowContext(ctx, averageSQL, o.scale, segment).Scan(&ans.Count, &ans.Sum); err != nil {
		return Answer{}, fmt.Errorf("oracle: failed to aggregate segment %q: %w", segment, err)
	}
	if ans.Count > 0 {
		ans.Average = ans.Sum / ans.Count
	}
	return ans, nil
}

// Segments returns the distinct segment labels in ascending order.
func (o *Oracle) Segments(ctx context.Context) ([]string, error) {
	rows, err := o.db.QueryContext(ctx, `SELECT DISTINCT segment FROM customer ORDER BY segment`)
	if err != nil {
		return nil, fmt.Errorf("oracle: failed to list segments: %w", err)
	}
	defer rows.Close()

	var segments []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("oracle: failed to scan segment: %w", err)
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// Close releases the database.
func (o *Oracle) Close() error {
	return o.db.Close()
}
