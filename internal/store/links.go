package store

import (
	"fmt"

	"github.com/Morzio/Hair-Factory/internal/hash"
)

// Link appends member to the ordered set of owner in link table t. It is
// a no-op when the pair is already linked.
func (s *Store) Link(t Table, owner, member hash.Digest) (bool, error) {
	res, err := s.q.Exec(`
		INSERT OR IGNORE INTO links (tbl, owner_id, member_id, position)
		VALUES (?, ?, ?, (SELECT COUNT(*) FROM links WHERE tbl = ? AND owner_id = ?))
	`, string(t), string(owner), string(member), string(t), string(owner))
	if err != nil {
		return false, fmt.Errorf("linking %s %s -> %s: %w", t, owner.Short(), member.Short(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Linked returns the members of owner in link table t, in link order.
func (s *Store) Linked(t Table, owner hash.Digest) ([]hash.Digest, error) {
	return s.digests("SELECT member_id FROM links WHERE tbl = ? AND owner_id = ? ORDER BY position",
		string(t), string(owner))
}

// IndexKind appends a NodeRecord id to the flat index of its kind.
func (s *Store) IndexKind(kind string, id hash.Digest) error {
	_, err := s.q.Exec(`
		INSERT OR IGNORE INTO kind_index (kind, id, position)
		VALUES (?, ?, (SELECT COUNT(*) FROM kind_index WHERE kind = ?))
	`, kind, string(id), kind)
	if err != nil {
		return fmt.Errorf("indexing %s %s: %w", KindIndex(kind), id.Short(), err)
	}
	return nil
}

// KindIDs returns every NodeRecord id of kind, oldest first.
func (s *Store) KindIDs(kind string) ([]hash.Digest, error) {
	return s.digests("SELECT id FROM kind_index WHERE kind = ? ORDER BY position", kind)
}

// KindCount returns the length of the flat index of kind.
func (s *Store) KindCount(kind string) (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM kind_index WHERE kind = ?", kind).Scan(&n)
	return n, err
}

func (s *Store) digests(query string, args ...any) ([]hash.Digest, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []hash.Digest
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, hash.Digest(id))
	}
	return out, rows.Err()
}
