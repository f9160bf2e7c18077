package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/hash"
)

// Record is one stored entry of a logical table.
type Record struct {
	Table     Table       `json:"table"`
	ID        hash.Digest `json:"id"`
	Name      string      `json:"name"`
	Kind      string      `json:"kind,omitempty"`
	Class     string      `json:"class,omitempty"`
	Owner     string      `json:"owner,omitempty"`
	Payload   []byte      `json:"-"`
	Seq       int64       `json:"seq"`
	CreatedAt int64       `json:"created_at"` // Unix millis
}

// Value decodes a JSON payload, keeping numbers exact.
func (r *Record) Value() (any, error) {
	v, err := hash.Decode(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.Table, r.ID.Short(), err)
	}
	return v, nil
}

// Entry is an (id, name) pair for listings.
type Entry struct {
	ID   hash.Digest `json:"id"`
	Name string      `json:"name"`
}

// scanRecord scans a row with all record columns in standard order.
func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var r Record
	var tbl, id string
	var blob []byte
	err := scanner.Scan(&tbl, &id, &r.Name, &r.Kind, &r.Class, &r.Owner, &blob, &r.Seq, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Table, r.ID = Table(tbl), hash.Digest(id)
	if r.Payload, err = decompress(blob); err != nil {
		return nil, err
	}
	return &r, nil
}

const recordColumns = `tbl, id, name, kind, class, owner, payload, seq, created_at`

// Exists reports whether id is present in t.
func (s *Store) Exists(t Table, id hash.Digest) (bool, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM records WHERE tbl = ? AND id = ?", string(t), string(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s %s: %w", t, id.Short(), err)
	}
	return n > 0, nil
}

// Get returns the record id of t, or a NotFoundError.
func (s *Store) Get(t Table, id hash.Digest) (*Record, error) {
	row := s.q.QueryRow("SELECT "+recordColumns+" FROM records WHERE tbl = ? AND id = ?", string(t), string(id))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Table: t, ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", t, id.Short(), err)
	}
	return r, nil
}

// NameOf returns the display name of id in t.
func (s *Store) NameOf(t Table, id hash.Digest) (string, error) {
	var name string
	err := s.q.QueryRow("SELECT name FROM records WHERE tbl = ? AND id = ?", string(t), string(id)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &NotFoundError{Table: t, ID: string(id)}
	}
	return name, err
}

// IDByName returns the id whose display name is name, or a NotFoundError.
func (s *Store) IDByName(t Table, name string) (hash.Digest, error) {
	var id string
	err := s.q.QueryRow("SELECT id FROM records WHERE tbl = ? AND name = ? AND name <> ''", string(t), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &NotFoundError{Table: t, ID: name}
	}
	if err != nil {
		return "", fmt.Errorf("looking up %s %q: %w", t, name, err)
	}
	return hash.Digest(id), nil
}

// NameTaken reports whether name is used in t.
func (s *Store) NameTaken(t Table, name string) (bool, error) {
	if name == "" {
		return false, nil
	}
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM records WHERE tbl = ? AND name = ?", string(t), name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking name %q in %s: %w", name, t, err)
	}
	return n > 0, nil
}

// SeriesName returns name if it is free in t. Otherwise it returns the
// next name of the series: the text before the first '.', a dot, and one
// more than the highest numeric suffix in use, zero padded to three digits.
func (s *Store) SeriesName(t Table, name string) (string, error) {
	taken, err := s.NameTaken(t, name)
	if err != nil || !taken {
		return name, err
	}
	base, _, _ := strings.Cut(name, ".")
	rows, err := s.q.Query("SELECT name FROM records WHERE tbl = ? AND name <> ''", string(t))
	if err != nil {
		return "", fmt.Errorf("listing series %q in %s: %w", base, t, err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", err
		}
		rest, ok := strings.CutPrefix(n, base+".")
		if !ok {
			continue
		}
		suffix, _, _ := strings.Cut(rest, ".")
		if num, err := strconv.Atoi(suffix); err == nil && num > highest {
			highest = num
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%03d", base, highest+1), nil
}

// NewRecord describes a record to insert. Payload is stored compressed.
type NewRecord struct {
	ID      hash.Digest
	Name    string
	Kind    string
	Class   string
	Owner   string
	Payload []byte
}

// PutIfAbsent creates rec in t unless its id is already present. A taken
// name is replaced by the next name of its series. It returns whether the
// record was created and the display name it is stored under.
func (s *Store) PutIfAbsent(t Table, rec NewRecord) (created bool, name string, err error) {
	if name, err := s.NameOf(t, rec.ID); err == nil {
		return false, name, nil
	} else if !isNotFound(err) {
		return false, "", err
	}
	if rec.Name, err = s.SeriesName(t, rec.Name); err != nil {
		return false, "", err
	}
	if err := s.insert(t, rec); err != nil {
		return false, "", err
	}
	return true, rec.Name, nil
}

// PutNamed creates rec in t unless its id is already present, in which
// case the existing name is returned. Unlike PutIfAbsent a taken name is
// a NameExistsError.
func (s *Store) PutNamed(t Table, rec NewRecord) (created bool, name string, err error) {
	if name, err := s.NameOf(t, rec.ID); err == nil {
		return false, name, nil
	} else if !isNotFound(err) {
		return false, "", err
	}
	taken, err := s.NameTaken(t, rec.Name)
	if err != nil {
		return false, "", err
	}
	if taken {
		return false, "", &NameExistsError{Table: t, Name: rec.Name}
	}
	if err := s.insert(t, rec); err != nil {
		return false, "", err
	}
	return true, rec.Name, nil
}

func (s *Store) insert(t Table, rec NewRecord) error {
	blob, err := compress(rec.Payload)
	if err != nil {
		return fmt.Errorf("compressing %s %s: %w", t, rec.ID.Short(), err)
	}
	_, err = s.q.Exec(`
		INSERT INTO records (tbl, id, name, kind, class, owner, payload, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?,
		        (SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE tbl = ?), ?)
	`, string(t), string(rec.ID), rec.Name, rec.Kind, rec.Class, rec.Owner, blob, string(t), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting %s %s: %w", t, rec.ID.Short(), err)
	}
	s.log.Debug("record created",
		zap.String("table", string(t)),
		zap.String("id", rec.ID.Short()),
		zap.String("name", rec.Name),
		zap.Int("bytes", len(rec.Payload)))
	return nil
}

// Rename gives id a new display name in t and returns the old one.
func (s *Store) Rename(t Table, id hash.Digest, newName string) (string, error) {
	old, err := s.NameOf(t, id)
	if err != nil {
		return "", err
	}
	if old == newName {
		return old, nil
	}
	taken, err := s.NameTaken(t, newName)
	if err != nil {
		return "", err
	}
	if taken {
		return "", &NameExistsError{Table: t, Name: newName}
	}
	if _, err := s.q.Exec("UPDATE records SET name = ? WHERE tbl = ? AND id = ?", newName, string(t), string(id)); err != nil {
		return "", fmt.Errorf("renaming %s %s: %w", t, id.Short(), err)
	}
	s.log.Debug("record renamed", zap.String("table", string(t)), zap.String("from", old), zap.String("to", newName))
	return old, nil
}

func (s *Store) entries(query string, args ...any) ([]Entry, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out = append(out, Entry{ID: hash.Digest(id), Name: name})
	}
	return out, rows.Err()
}

// List returns every entry of t in insertion order.
func (s *Store) List(t Table) ([]Entry, error) {
	return s.entries("SELECT id, name FROM records WHERE tbl = ? ORDER BY seq", string(t))
}

// Names returns the display names of t in insertion order.
func (s *Store) Names(t Table) ([]string, error) {
	list, err := s.List(t)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list))
	for _, e := range list {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names, nil
}

// Search returns entries of t whose name contains substr (case-sensitive).
func (s *Store) Search(t Table, substr string) ([]Entry, error) {
	return s.entries("SELECT id, name FROM records WHERE tbl = ? AND name <> '' AND instr(name, ?) > 0 ORDER BY seq",
		string(t), substr)
}

// ByIDPrefix returns entries of t whose id starts with prefix.
func (s *Store) ByIDPrefix(t Table, prefix string, limit int) ([]Entry, error) {
	return s.entries("SELECT id, name FROM records WHERE tbl = ? AND substr(id, 1, ?) = ? ORDER BY seq LIMIT ?",
		string(t), len(prefix), prefix, limit)
}

// Count returns the number of records in t.
func (s *Store) Count(t Table) (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM records WHERE tbl = ?", string(t)).Scan(&n)
	return n, err
}

func isNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
