package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/starford/archgraph/internal/apperr"
	"github.com/starford/archgraph/internal/models"
	"github.com/starford/archgraph/internal/refindex"
	"github.com/starford/archgraph/internal/report"
)

// Meta describes the run the mirror was built from.
type Meta struct {
	RunID     string         `json:"run_id"`
	Version   int            `json:"version"`
	Generated time.Time      `json:"generated"`
	Summary   report.Summary `json:"summary"`
}

// FeatureSummary is one row of the feature listing.
type FeatureSummary struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	Status     string `json:"status"`
	EntryPoint string `json:"entry_point"`
}

// TermHit is one term search result.
type TermHit struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	File    string `json:"file"`
	Snippet string `json:"snippet"`
}

// IssueFilter narrows Issues. Empty fields match everything.
type IssueFilter struct {
	File     string
	Kind     string
	Severity string
}

// Replace swaps the whole mirror for snap inside one transaction. A failed
// replace leaves the previous contents untouched.
func (db *DB) Replace(snap Snapshot) error {
	if snap.Index == nil {
		return errors.New("index: replace: nil reference index")
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"meta", "features", "code", "interfaces", "shared_types", "terms", "term_aliases", "edges", "issues", "orphans"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsReset(tx); err != nil {
		return err
	}

	idx := snap.Index
	rep := snap.Report
	if rep == nil {
		rep = &report.Report{}
	}
	summary, _ := json.Marshal(rep.Summary())
	for k, v := range map[string]string{
		"run_id":    snap.RunID,
		"version":   strconv.Itoa(idx.Version),
		"generated": idx.Generated.UTC().Format(time.RFC3339),
		"summary":   string(summary),
	} {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("index: insert meta: %w", err)
		}
	}

	edge, err := tx.Prepare(`INSERT OR IGNORE INTO edges (source, target, type) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare edge insert: %w", err)
	}
	defer edge.Close()
	addEdges := func(source, typ string, targets []string) error {
		for _, t := range targets {
			if _, err := edge.Exec(source, t, typ); err != nil {
				return fmt.Errorf("index: insert edge: %w", err)
			}
		}
		return nil
	}

	for id, f := range idx.Features {
		rec, _ := json.Marshal(f)
		if _, err := tx.Exec(`INSERT INTO features (id, file, status, entry_point, record) VALUES (?, ?, ?, ?, ?)`,
			id, f.File, f.Status, f.EntryPoint, string(rec)); err != nil {
			return fmt.Errorf("index: insert feature: %w", err)
		}
		for _, e := range []struct {
			typ     string
			targets []string
		}{
			{EdgeDependsOn, f.Dependencies},
			{EdgeRelated, f.RelatedFeatures},
			{EdgeDocuments, f.CodeRefs},
			{EdgeUses, f.InterfacesUsed},
			{EdgeProvides, f.InterfacesProvided},
		} {
			if err := addEdges(id, e.typ, e.targets); err != nil {
				return err
			}
		}
	}

	for p, c := range idx.Code {
		rec, _ := json.Marshal(c)
		if _, err := tx.Exec(`INSERT INTO code (path, kind, exists_on_disk, record) VALUES (?, ?, ?, ?)`,
			p, string(c.Kind), c.Exists, string(rec)); err != nil {
			return fmt.Errorf("index: insert code: %w", err)
		}
		if err := addEdges(p, EdgeImports, c.Imports); err != nil {
			return err
		}
	}

	for id, e := range idx.Interfaces {
		rec, _ := json.Marshal(e)
		if _, err := tx.Exec(`INSERT INTO interfaces (id, file, from_feature, to_feature, type, record) VALUES (?, ?, ?, ?, ?, ?)`,
			id, e.File, e.From, e.To, e.Type, string(rec)); err != nil {
			return fmt.Errorf("index: insert interface: %w", err)
		}
	}

	for id, g := range idx.SharedTypes {
		rec, _ := json.Marshal(g)
		if _, err := tx.Exec(`INSERT INTO shared_types (id, file, record) VALUES (?, ?, ?)`, id, g.File, string(rec)); err != nil {
			return fmt.Errorf("index: insert shared type: %w", err)
		}
	}

	for key, t := range idx.Terms {
		rec, _ := json.Marshal(t)
		if _, err := tx.Exec(`INSERT INTO terms (key, name, scope, file, definition, record) VALUES (?, ?, ?, ?, ?, ?)`,
			key, t.Name, string(t.Scope), t.File, t.Definition, string(rec)); err != nil {
			return fmt.Errorf("index: insert term: %w", err)
		}
		if t.Scope == models.ScopeGlobal {
			for _, a := range t.Aliases {
				if _, err := tx.Exec(`INSERT OR IGNORE INTO term_aliases (alias, key) VALUES (?, ?)`, a, key); err != nil {
					return fmt.Errorf("index: insert alias: %w", err)
				}
			}
		}
		if err := ftsInsertTerm(tx, key, t.Name, t.Definition, t.Aliases); err != nil {
			return err
		}
	}

	for _, is := range rep.Issues {
		cycle, _ := json.Marshal(is.Cycle)
		if _, err := tx.Exec(`
			INSERT INTO issues (file, line, kind, code, severity, subject, message, suggestion, cycle)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, is.File, is.Line, string(is.Kind), is.Code, string(is.Severity), is.Subject, is.Message, is.Suggestion, string(cycle)); err != nil {
			return fmt.Errorf("index: insert issue: %w", err)
		}
	}

	for _, o := range snap.Orphans {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO orphans (path, class, referenced) VALUES (?, ?, ?)`,
			o.Path, string(o.Class), o.Referenced); err != nil {
			return fmt.Errorf("index: insert orphan: %w", err)
		}
	}

	return tx.Commit()
}

// Meta returns the description of the mirrored run, or ErrNotFound when
// the mirror is empty.
func (db *DB) Meta() (Meta, error) {
	rows, err := db.conn.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("index: meta: %w", err)
	}
	defer rows.Close()

	var m Meta
	found := false
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, err
		}
		found = true
		switch k {
		case "run_id":
			m.RunID = v
		case "version":
			m.Version, _ = strconv.Atoi(v)
		case "generated":
			m.Generated, _ = time.Parse(time.RFC3339, v)
		case "summary":
			_ = json.Unmarshal([]byte(v), &m.Summary)
		}
	}
	if err := rows.Err(); err != nil {
		return Meta{}, err
	}
	if !found {
		return Meta{}, fmt.Errorf("index: meta: %w", apperr.ErrNotFound)
	}
	return m, nil
}

// Feature returns the feature with the given id.
func (db *DB) Feature(id string) (*models.FeatureRecord, error) {
	var out models.FeatureRecord
	if err := db.record(`SELECT record FROM features WHERE id = ?`, id, &out); err != nil {
		return nil, fmt.Errorf("feature %q: %w", id, err)
	}
	return &out, nil
}

// Code returns the code record for a path.
func (db *DB) Code(path string) (*models.CodeRecord, error) {
	var out models.CodeRecord
	if err := db.record(`SELECT record FROM code WHERE path = ?`, refindex.NormalizePath(path), &out); err != nil {
		return nil, fmt.Errorf("code %q: %w", path, err)
	}
	return &out, nil
}

// Interface returns the interface edge with the given id.
func (db *DB) Interface(id string) (*models.InterfaceEdge, error) {
	var out models.InterfaceEdge
	if err := db.record(`SELECT record FROM interfaces WHERE id = ?`, id, &out); err != nil {
		return nil, fmt.Errorf("interface %q: %w", id, err)
	}
	return &out, nil
}

// SharedType returns a shared-type group by canonical id.
func (db *DB) SharedType(id string) (*models.SharedTypeGroup, error) {
	var out models.SharedTypeGroup
	if err := db.record(`SELECT record FROM shared_types WHERE id = ?`, id, &out); err != nil {
		return nil, fmt.Errorf("shared type %q: %w", id, err)
	}
	return &out, nil
}

// Term looks a term up by key, then by alias of a global term.
func (db *DB) Term(name string) (*models.TermRecord, error) {
	var out models.TermRecord
	err := db.record(`SELECT record FROM terms WHERE key = ?`, name, &out)
	if errors.Is(err, apperr.ErrNotFound) {
		err = db.record(`
			SELECT t.record FROM term_aliases a JOIN terms t ON t.key = a.key
			WHERE a.alias = ? ORDER BY t.key LIMIT 1
		`, name, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", name, err)
	}
	return &out, nil
}

// Dependents returns the ids of features that declare a dependency on
// featureID, sorted.
func (db *DB) Dependents(featureID string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM edges WHERE target = ? AND type = ? ORDER BY source`,
		featureID, EdgeDependsOn)
	if err != nil {
		return nil, fmt.Errorf("index: dependents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListFeatures returns every feature sorted by id.
func (db *DB) ListFeatures() ([]FeatureSummary, error) {
	rows, err := db.conn.Query(`SELECT id, file, status, entry_point FROM features ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: list features: %w", err)
	}
	defer rows.Close()

	var out []FeatureSummary
	for rows.Next() {
		var f FeatureSummary
		if err := rows.Scan(&f.ID, &f.File, &f.Status, &f.EntryPoint); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Issues returns the stored issues in report order.
func (db *DB) Issues(filter IssueFilter) ([]report.Issue, error) {
	q := `SELECT file, line, kind, code, severity, subject, message, suggestion, cycle FROM issues WHERE 1=1`
	var args []any
	if filter.File != "" {
		q += ` AND file = ?`
		args = append(args, filter.File)
	}
	if filter.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, filter.Kind)
	}
	if filter.Severity != "" {
		q += ` AND severity = ?`
		args = append(args, filter.Severity)
	}
	q += ` ORDER BY seq`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: issues: %w", err)
	}
	defer rows.Close()

	var out []report.Issue
	for rows.Next() {
		var is report.Issue
		var kind, severity, cycle string
		if err := rows.Scan(&is.File, &is.Line, &kind, &is.Code, &severity, &is.Subject, &is.Message, &is.Suggestion, &cycle); err != nil {
			return nil, err
		}
		is.Kind = report.Kind(kind)
		is.Severity = report.Severity(severity)
		_ = json.Unmarshal([]byte(cycle), &is.Cycle)
		out = append(out, is)
	}
	return out, rows.Err()
}

// Orphans returns the stored orphans sorted by path.
func (db *DB) Orphans() ([]models.Orphan, error) {
	rows, err := db.conn.Query(`SELECT path, class, referenced FROM orphans ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("index: orphans: %w", err)
	}
	defer rows.Close()

	var out []models.Orphan
	for rows.Next() {
		var o models.Orphan
		var class string
		if err := rows.Scan(&o.Path, &class, &o.Referenced); err != nil {
			return nil, err
		}
		o.Class = models.CodeKind(class)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (db *DB) record(query, key string, dst any) error {
	var raw string
	err := db.conn.QueryRow(query, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("index: query: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("index: decode record: %w", err)
	}
	return nil
}
