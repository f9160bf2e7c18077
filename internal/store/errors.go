package store

import "fmt"

// NameExistsError is returned when a display name is already used in a
// table. Callers should ask for another name.
type NameExistsError struct {
	Table Table
	Name  string
}

func (e *NameExistsError) Error() string {
	return fmt.Sprintf("%s: name %q already exists, choose another name", e.Table, e.Name)
}

// NotFoundError is returned when an id is not present in a table.
type NotFoundError struct {
	Table Table
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Table, e.ID)
}
