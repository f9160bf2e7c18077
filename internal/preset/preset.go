// Package preset saves and restores presets for every asset class of the
// hair add-on: node graphs, modifier stacks, single special nodes, physics
// settings and hair point clouds. Records are content addressed: saving
// the same state twice creates nothing new.
package preset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/Morzio/Hair-Factory/internal/graph"
	"github.com/Morzio/Hair-Factory/internal/hash"
	"github.com/Morzio/Hair-Factory/internal/session"
	"github.com/Morzio/Hair-Factory/internal/store"
)

// ErrTopologyChanged is returned by a full load onto a graph whose
// structure no longer matches the stored one.
var ErrTopologyChanged = errors.New("graph topology changed since the preset was saved")

// InvalidNameError rejects a user-chosen preset name.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid preset name %q: %s", e.Name, e.Reason)
}

// IntegrityError reports an imported record whose content does not hash to
// the id it claims.
type IntegrityError struct {
	What string
	Want hash.Digest
	Got  hash.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: document says %s, content hashes to %s",
		e.What, e.Want.Short(), e.Got.Short())
}

// ValidateName checks a top-level preset name: not blank, no whitespace
// and not the reserved NONE.
func ValidateName(name string) error {
	if name == "" {
		return &InvalidNameError{Name: name, Reason: "name is empty"}
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return &InvalidNameError{Name: name, Reason: "name contains whitespace"}
	}
	if strings.EqualFold(name, "NONE") {
		return &InvalidNameError{Name: name, Reason: "name is reserved"}
	}
	return nil
}

// Type names a kind of preset, as used in export documents and listings.
type Type string

const (
	TypeMaterial  Type = "MATERIAL"
	TypeGeometry  Type = "GEOMETRY_NODE"
	TypeStack     Type = "MODIFIER_STACK"
	TypeNode      Type = "NODE"
	TypeCloth     Type = "CLOTH"
	TypeSoftBody  Type = "SOFT_BODY"
	TypeCollision Type = "COLLISION"
	TypeHair      Type = "HAIR"
)

// Types lists every preset type.
var Types = []Type{TypeMaterial, TypeGeometry, TypeStack, TypeNode, TypeCloth, TypeSoftBody, TypeCollision, TypeHair}

// ParseType accepts a type name in any case, plus short CLI aliases.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "_")) {
	case "MATERIAL", "MATERIALS":
		return TypeMaterial, nil
	case "GEOMETRY_NODE", "GEOMETRY_NODES", "GEOMETRY", "GEONODES":
		return TypeGeometry, nil
	case "MODIFIER_STACK", "STACK":
		return TypeStack, nil
	case "NODE", "NODES":
		return TypeNode, nil
	case "CLOTH":
		return TypeCloth, nil
	case "SOFT_BODY", "SOFTBODY":
		return TypeSoftBody, nil
	case "COLLISION":
		return TypeCollision, nil
	case "HAIR":
		return TypeHair, nil
	}
	return "", fmt.Errorf("unknown preset type %q", s)
}

// TypeOf returns the preset type of a graph class.
func TypeOf(c graph.Class) Type {
	if c == graph.GeometryNode {
		return TypeGeometry
	}
	return TypeMaterial
}

// Class returns the graph class of t, if it is a graph preset type.
func (t Type) Class() (graph.Class, bool) {
	switch t {
	case TypeMaterial:
		return graph.Material, true
	case TypeGeometry:
		return graph.GeometryNode, true
	}
	return "", false
}

// IsSettings reports whether t is a physics settings type.
func (t Type) IsSettings() bool {
	return t == TypeCloth || t == TypeSoftBody || t == TypeCollision
}

// Table returns the table holding the named presets of t.
func (t Type) Table() (store.Table, error) {
	if c, ok := t.Class(); ok {
		return store.GraphTables(c).Transactions, nil
	}
	switch t {
	case TypeStack:
		return store.ModStack, nil
	case TypeNode:
		return store.Nodes, nil
	case TypeHair:
		return store.HairPoints, nil
	}
	if t.IsSettings() {
		return store.SettingsTable(string(t))
	}
	return "", fmt.Errorf("unknown preset type %q", t)
}

// SaveResult is the outcome of a save or import.
type SaveResult struct {
	Type    Type        `json:"type"`
	ID      hash.Digest `json:"id"`
	Name    string      `json:"name"`
	Created bool        `json:"created"`
}

// Processor runs preset operations against one store.
type Processor struct {
	st       *store.Store
	owner    string
	previews *session.Cache
	log      *zap.Logger
}

// New returns a Processor. owner tags graphs that carry no owner of their
// own. A nil previews cache starts an empty session.
func New(st *store.Store, owner string, previews *session.Cache, log *zap.Logger) *Processor {
	if previews == nil {
		previews = session.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if owner == "" {
		owner = "USER"
	}
	return &Processor{st: st, owner: owner, previews: previews, log: log}
}

// Store returns the underlying record store.
func (p *Processor) Store() *store.Store {
	return p.st
}

// update runs fn in one store transaction with a processor bound to it.
func (p *Processor) update(fn func(tx *Processor) error) error {
	return p.st.Update(func(st *store.Store) error {
		return fn(&Processor{st: st, owner: p.owner, previews: p.previews, log: p.log})
	})
}

// checkTopName applies the top-level naming policy: when id is already
// stored the save is a no-op reporting the existing name, otherwise name
// must be free in t.
func (p *Processor) checkTopName(t store.Table, id hash.Digest, name string) (existing string, exists bool, err error) {
	existing, err = p.st.NameOf(t, id)
	if err == nil {
		return existing, true, nil
	}
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		return "", false, err
	}
	taken, err := p.st.NameTaken(t, name)
	if err != nil {
		return "", false, err
	}
	if taken {
		return "", false, &store.NameExistsError{Table: t, Name: name}
	}
	return "", false, nil
}

// canonical returns the canonical payload bytes and digest of v.
func canonical(v any) ([]byte, hash.Digest, error) {
	b, err := hash.Canonical(v)
	if err != nil {
		return nil, "", err
	}
	return b, hash.Bytes(b), nil
}

// decodeInto decodes a stored JSON payload into v, keeping numbers exact.
func decodeInto(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	return dec.Decode(v)
}

// List returns every preset of t in the order they were saved.
func (p *Processor) List(t Type) ([]store.Entry, error) {
	tbl, err := t.Table()
	if err != nil {
		return nil, err
	}
	return p.st.List(tbl)
}

// Search returns presets of t whose name contains substr.
func (p *Processor) Search(t Type, substr string) ([]store.Entry, error) {
	tbl, err := t.Table()
	if err != nil {
		return nil, err
	}
	return p.st.Search(tbl, substr)
}

// Names returns the display names of the presets of t.
func (p *Processor) Names(t Type) ([]string, error) {
	tbl, err := t.Table()
	if err != nil {
		return nil, err
	}
	return p.st.Names(tbl)
}

// Rename gives preset id of type t a new name and returns the old one.
func (p *Processor) Rename(t Type, id hash.Digest, newName string) (string, error) {
	if err := ValidateName(newName); err != nil {
		return "", err
	}
	tbl, err := t.Table()
	if err != nil {
		return "", err
	}
	var old string
	err = p.update(func(tx *Processor) error {
		var err error
		if old, err = tx.st.Rename(tbl, id, newName); err != nil {
			return err
		}
		if t == TypeHair {
			_, err = tx.st.Rename(store.HairSizes, id, newName)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	p.log.Info("preset renamed", zap.String("type", string(t)), zap.String("from", old), zap.String("to", newName))
	return old, nil
}
