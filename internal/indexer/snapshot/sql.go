package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/linesearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS ls_snapshots (
	id          INTEGER PRIMARY KEY,
	generation  TEXT    NOT NULL,
	created_at  BIGINT  NOT NULL,
	documents   INTEGER NOT NULL,
	lines       INTEGER NOT NULL,
	terms       INTEGER NOT NULL,
	postings    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ls_lines (
	doc_id   TEXT    NOT NULL,
	line_id  INTEGER NOT NULL,
	content  TEXT    NOT NULL,
	PRIMARY KEY (doc_id, line_id)
);
CREATE TABLE IF NOT EXISTS ls_postings (
	token    TEXT    NOT NULL,
	seq      INTEGER NOT NULL,
	doc_id   TEXT    NOT NULL,
	line_id  INTEGER NOT NULL,
	PRIMARY KEY (token, seq)
);`

// snapshotRow is the single row of ls_snapshots; it is written last in the
// save transaction and marks the other two tables as complete.
const snapshotRow = 1

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLGateway stores a snapshot in three tables inside one transaction. It
// serves both SQLite and PostgreSQL.
type SQLGateway struct {
	db      *sql.DB
	dialect dialect
	closer  func() error
}

// OpenSQLite opens (creating if needed) a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLGateway, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	g := &SQLGateway{db: db, dialect: dialectSQLite, closer: db.Close}
	if err := g.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

// OpenPostgres uses an already connected client; Close closes the client.
func OpenPostgres(ctx context.Context, client *postgres.Client) (*SQLGateway, error) {
	g := &SQLGateway{db: client.DB, dialect: dialectPostgres, closer: client.Close}
	if err := g.migrate(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *SQLGateway) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating snapshot schema: %w", err)
		}
	}
	return nil
}

// rebind turns '?' placeholders into '$n' for PostgreSQL.
func (g *SQLGateway) rebind(query string) string {
	if g.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (g *SQLGateway) Save(ctx context.Context, snap Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}
	stats := snap.Index.Stats()
	return postgres.RunInTx(ctx, g.db, func(tx *sql.Tx) error {
		for _, table := range []string{"ls_snapshots", "ls_postings", "ls_lines"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		lineStmt, err := tx.PrepareContext(ctx, g.rebind(
			"INSERT INTO ls_lines (doc_id, line_id, content) VALUES (?, ?, ?)"))
		if err != nil {
			return fmt.Errorf("preparing line insert: %w", err)
		}
		defer lineStmt.Close()
		var insertErr error
		snap.Index.Store().Each(func(doc string, line int, content string) bool {
			if _, err := lineStmt.ExecContext(ctx, doc, line, content); err != nil {
				insertErr = fmt.Errorf("inserting line %s/%d: %w", doc, line, err)
				return false
			}
			return true
		})
		if insertErr != nil {
			return insertErr
		}

		postStmt, err := tx.PrepareContext(ctx, g.rebind(
			"INSERT INTO ls_postings (token, seq, doc_id, line_id) VALUES (?, ?, ?, ?)"))
		if err != nil {
			return fmt.Errorf("preparing posting insert: %w", err)
		}
		defer postStmt.Close()
		for _, entry := range snap.Index.Inverted().Entries() {
			for seq, p := range entry.Postings {
				if _, err := postStmt.ExecContext(ctx, entry.Term, seq, p.DocID, p.LineID); err != nil {
					return fmt.Errorf("inserting posting for %q: %w", entry.Term, err)
				}
			}
		}

		_, err = tx.ExecContext(ctx, g.rebind(
			`INSERT INTO ls_snapshots (id, generation, created_at, documents, lines, terms, postings)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			snapshotRow, snap.Generation, snap.CreatedAt.UnixNano(),
			stats.Documents, stats.Lines, stats.Terms, stats.Postings)
		if err != nil {
			return fmt.Errorf("recording snapshot: %w", err)
		}
		return nil
	})
}

func (g *SQLGateway) Load(ctx context.Context) (Snapshot, error) {
	var (
		generation string
		createdAt  int64
		want       index.Stats
	)
	err := g.db.QueryRowContext(ctx, g.rebind(
		"SELECT generation, created_at, documents, lines, terms, postings FROM ls_snapshots WHERE id = ?"),
		snapshotRow,
	).Scan(&generation, &createdAt, &want.Documents, &want.Lines, &want.Terms, &want.Postings)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: no snapshot row", apperrors.ErrSnapshotNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading snapshot row: %w", err)
	}

	store := index.NewStore()
	if err := g.each(ctx, "SELECT doc_id, line_id, content FROM ls_lines", func(rows *sql.Rows) error {
		var (
			doc     string
			line    int
			content string
		)
		if err := rows.Scan(&doc, &line, &content); err != nil {
			return err
		}
		store.Put(doc, line, content)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("loading lines: %w", err)
	}

	inv := index.NewInverted()
	if err := g.each(ctx, "SELECT token, doc_id, line_id FROM ls_postings ORDER BY token, seq", func(rows *sql.Rows) error {
		var (
			token string
			p     index.Posting
		)
		if err := rows.Scan(&token, &p.DocID, &p.LineID); err != nil {
			return err
		}
		inv.Append(token, p)
		return nil
	}); err != nil {
		return Snapshot{}, fmt.Errorf("loading postings: %w", err)
	}

	idx, err := index.Assemble(inv, store)
	if err != nil {
		return Snapshot{}, corrupt("%v", err)
	}
	if got := idx.Stats(); got != want {
		return Snapshot{}, corrupt("loaded %+v, snapshot row records %+v", got, want)
	}
	return Snapshot{Index: idx, Generation: generation, CreatedAt: time.Unix(0, createdAt)}, nil
}

func (g *SQLGateway) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (g *SQLGateway) Close() error {
	return g.closer()
}
