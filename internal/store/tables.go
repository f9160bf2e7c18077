package store

import (
	"fmt"

	"github.com/Morzio/Hair-Factory/internal/graph"
)

// Table names a logical table. Names follow the archive's group paths.
type Table string

const (
	Nodes        Table = "NODES"
	NodeStack    Table = "NODE_STACK"
	ModStack     Table = "PRESETS/GEOMETRY_NODES/MODIFIER_STACK"
	Cloth        Table = "PHYSICS/CLOTH"
	SoftBody     Table = "PHYSICS/SOFT_BODY"
	Collision    Table = "PHYSICS/COLLISION"
	HairPoints   Table = "HAIR/POINTS"
	HairSizes    Table = "HAIR/SIZES"
	materialRoot       = "PRESETS/MATERIALS"
	geometryRoot       = "PRESETS/GEOMETRY_NODES"
)

// ClassTables are the tables backing one graph class.
type ClassTables struct {
	Info         Table // GraphIdentity
	Data         Table // ValuesRecord
	Transactions Table // PresetTransaction
	Full         Table // link: graph -> transactions
	Values       Table // link: graph -> values
}

// GraphTables returns the tables for class c.
func GraphTables(c graph.Class) ClassTables {
	root := materialRoot
	if c == graph.GeometryNode {
		root = geometryRoot
	}
	return ClassTables{
		Info:         Table(root + "/INFO"),
		Data:         Table(root + "/DATA"),
		Transactions: Table(root + "/TRANSACTIONS"),
		Full:         Table(root + "/FULL"),
		Values:       Table(root + "/VALUES"),
	}
}

// KindIndex is the flat index of NodeRecord ids of one node kind.
func KindIndex(kind string) Table {
	return Table("PRESETS/" + kind)
}

// SettingsTable returns the physics table for a settings type name.
func SettingsTable(typ string) (Table, error) {
	switch typ {
	case "CLOTH":
		return Cloth, nil
	case "SOFT_BODY":
		return SoftBody, nil
	case "COLLISION":
		return Collision, nil
	}
	return "", fmt.Errorf("unknown settings type %q", typ)
}
