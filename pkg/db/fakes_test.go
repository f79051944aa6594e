/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	errBoom        = errors.New("boom")
	errCloseFailed = errors.New("close failed")

	errFakeBatchResultsQuery = errors.New("Query not implemented in fakeBatchResults")
	errFakeBatchRowScan      = errors.New("Scan not implemented in fakeBatchRow")
)

type fakeBatchResults struct {
	execCalls int
	execErrAt int
	execErr   error

	closeCalls int
	closeErr   error
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	defer func() { f.execCalls++ }()

	if f.execErr != nil && f.execCalls == f.execErrAt {
		return pgconn.CommandTag{}, f.execErr
	}

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (*fakeBatchResults) Query() (pgx.Rows, error) {
	return nil, errFakeBatchResultsQuery
}

type fakeBatchRow struct{}

func (fakeBatchRow) Scan(...any) error { return errFakeBatchRowScan }

func (*fakeBatchResults) QueryRow() pgx.Row {
	return fakeBatchRow{}
}

func (f *fakeBatchResults) Close() error {
	f.closeCalls++
	return f.closeErr
}

type execCall struct {
	sql  string
	args []any
}

type fakePgxExecutor struct {
	br      *fakeBatchResults
	batches []*pgx.Batch
	execs   []execCall
	execErr error
	rows    *fakeRows
	queries []execCall
}

func (f *fakePgxExecutor) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})

	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakePgxExecutor) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, execCall{sql: sql, args: args})

	if f.rows == nil {
		return nil, errBoom
	}

	return f.rows, nil
}

func (*fakePgxExecutor) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeBatchRow{}
}

func (f *fakePgxExecutor) SendBatch(_ context.Context, batch *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, batch)

	if f.br == nil {
		f.br = &fakeBatchResults{}
	}

	return f.br
}

// eventRow mirrors the columns selected by recentEventsSQL.
type eventRow struct {
	id         uuid.UUID
	eventType  string
	deviceID   string
	tokens     []byte
	occurredAt time.Time
}

type fakeRows struct {
	rows   []eventRow
	pos    int
	closed bool
	err    error
}

func (r *fakeRows) Close()                                     { r.closed = true }
func (r *fakeRows) Err() error                                 { return r.err }
func (*fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (*fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (*fakeRows) Values() ([]any, error)                       { return nil, errBoom }
func (*fakeRows) RawValues() [][]byte                          { return nil }
func (*fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}

	r.pos++

	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != 5 {
		return fmt.Errorf("scan: want 5 destinations, got %d", len(dest))
	}

	row := r.rows[r.pos-1]

	*dest[0].(*uuid.UUID) = row.id
	*dest[1].(*string) = row.eventType
	*dest[2].(*string) = row.deviceID
	*dest[3].(*[]byte) = row.tokens
	*dest[4].(*time.Time) = row.occurredAt

	return nil
}
