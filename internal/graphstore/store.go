// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphstore persists reconciled knowledge graphs in SQLite and
// serves entity and edge queries over them, including FTS5 full-text search
// across entity names and aliases.
package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/biokg-builder/pkg/types"
)

// Store manages one keyword run's graph database.
type Store struct {
	db         *sql.DB
	maxResults int
}

// Open opens or creates the graph database at path and ensures the schema
// exists.
func Open(path string, cfg types.GraphStoreConfig) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS run_info (
			keyword TEXT PRIMARY KEY,
			built_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS articles (
			pmid TEXT PRIMARY KEY,
			title TEXT,
			journal TEXT,
			authors TEXT,
			date TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			aliases TEXT NOT NULL,
			articles TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL REFERENCES entities(name),
			target TEXT NOT NULL REFERENCES entities(name),
			relation TEXT NOT NULL,
			polarity TEXT NOT NULL,
			conflict INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL,
			articles TEXT NOT NULL,
			evidence TEXT,
			UNIQUE(source, target, relation)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table over entity names and aliases, with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='entities_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE entities_fts USING fts5(name, aliases, content=entities, content_rowid=rowid)`,
			`CREATE TRIGGER entities_ai AFTER INSERT ON entities BEGIN
				INSERT INTO entities_fts(rowid, name, aliases) VALUES (new.rowid, new.name, new.aliases);
			END`,
			`CREATE TRIGGER entities_ad AFTER DELETE ON entities BEGIN
				INSERT INTO entities_fts(entities_fts, rowid, name, aliases) VALUES('delete', old.rowid, old.name, old.aliases);
			END`,
			`CREATE TRIGGER entities_au AFTER UPDATE ON entities BEGIN
				INSERT INTO entities_fts(entities_fts, rowid, name, aliases) VALUES('delete', old.rowid, old.name, old.aliases);
				INSERT INTO entities_fts(rowid, name, aliases) VALUES (new.rowid, new.name, new.aliases);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Save replaces the stored run with the given graph and its source articles
// in a single transaction.
func (s *Store) Save(ctx context.Context, graph *types.KnowledgeGraph, articles []types.ArticleRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// A store holds exactly one run; wipe any previous contents.
	for _, stmt := range []string{
		`DELETE FROM edges`, `DELETE FROM entities`, `DELETE FROM articles`, `DELETE FROM run_info`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing previous run: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO run_info (keyword, built_at) VALUES (?, ?)`,
		graph.Keyword, graph.BuiltAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting run info: %w", err)
	}

	artStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO articles (pmid, title, journal, authors, date) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing article insert: %w", err)
	}
	defer artStmt.Close()

	for _, a := range articles {
		authorsJSON, _ := json.Marshal(a.Authors)
		dateStr := ""
		if !a.Date.IsZero() {
			dateStr = a.Date.Format(time.RFC3339)
		}
		if _, err := artStmt.ExecContext(ctx, a.PMID, a.Title, a.Journal, string(authorsJSON), dateStr); err != nil {
			return fmt.Errorf("inserting article %s: %w", a.PMID, err)
		}
	}

	entStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (name, type, aliases, articles) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer entStmt.Close()

	for _, e := range graph.Entities {
		aliasesJSON, _ := json.Marshal(e.Aliases)
		articlesJSON, _ := json.Marshal(e.Articles)
		if _, err := entStmt.ExecContext(ctx, e.Name, string(e.Type), string(aliasesJSON), string(articlesJSON)); err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.Name, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO edges (source, target, relation, polarity, conflict, confidence, articles, evidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range graph.Edges {
		articlesJSON, _ := json.Marshal(e.Articles)
		evidenceJSON, _ := json.Marshal(e.Evidence)
		conflict := 0
		if e.Conflict {
			conflict = 1
		}
		_, err := edgeStmt.ExecContext(ctx,
			e.Source, e.Target, string(e.Relation), string(e.Polarity),
			conflict, e.Confidence, string(articlesJSON), string(evidenceJSON))
		if err != nil {
			return fmt.Errorf("inserting edge %s->%s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// LoadGraph reads the full stored graph back.
func (s *Store) LoadGraph(ctx context.Context) (*types.KnowledgeGraph, error) {
	graph := &types.KnowledgeGraph{}

	var builtAt string
	err := s.db.QueryRowContext(ctx, `SELECT keyword, built_at FROM run_info`).
		Scan(&graph.Keyword, &builtAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store holds no run")
		}
		return nil, fmt.Errorf("reading run info: %w", err)
	}
	if t, perr := time.Parse(time.RFC3339Nano, builtAt); perr == nil {
		graph.BuiltAt = t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, aliases, articles FROM entities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("reading entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		graph.Entities = append(graph.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}

	edges, err := s.Edges(ctx, EdgeQuery{MaxResults: -1})
	if err != nil {
		return nil, err
	}
	graph.Edges = edges

	return graph, nil
}

// Articles reads the stored article records back, ordered by PMID.
func (s *Store) Articles(ctx context.Context) ([]types.ArticleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT pmid, title, journal, authors, date FROM articles ORDER BY pmid`)
	if err != nil {
		return nil, fmt.Errorf("reading articles: %w", err)
	}
	defer rows.Close()

	var articles []types.ArticleRecord
	for rows.Next() {
		var a types.ArticleRecord
		var authorsJSON, dateStr string
		if err := rows.Scan(&a.PMID, &a.Title, &a.Journal, &authorsJSON, &dateStr); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		json.Unmarshal([]byte(authorsJSON), &a.Authors)
		if dateStr != "" {
			if t, perr := time.Parse(time.RFC3339, dateStr); perr == nil {
				a.Date = t
			}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// rowScanner lets scanEntity work over *sql.Rows and *sql.Row alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(r rowScanner) (types.CanonicalEntity, error) {
	var e types.CanonicalEntity
	var etype, aliasesJSON, articlesJSON string
	if err := r.Scan(&e.Name, &etype, &aliasesJSON, &articlesJSON); err != nil {
		return e, fmt.Errorf("scanning entity: %w", err)
	}
	e.Type = types.EntityType(etype)
	json.Unmarshal([]byte(aliasesJSON), &e.Aliases)
	json.Unmarshal([]byte(articlesJSON), &e.Articles)
	return e, nil
}
