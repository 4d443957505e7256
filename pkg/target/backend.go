// Package target defines the live SCSI target backend that the
// configuration engine converges: a narrow interface over the
// kernel-resident object tree, plus an in-memory implementation used
// for config-only mode and tests.
package target

import "fmt"

// ObjRef identifies one object along a path in the live object
// hierarchy, e.g. {storage fileio} / {disk vm1}.
type ObjRef struct {
	Class string
	ID    string
}

func (r ObjRef) String() string {
	return r.Class + " " + r.ID
}

// Attr is one attribute to set on a live object. Group is empty for
// top-level attributes, or the attribute-group name (attribute,
// parameter, auth) the attribute lives under.
type Attr struct {
	Group string
	Name  string
	Value string
}

// Backend is the live target collaborator. Create and delete are
// idempotent: creating an object that already exists updates its
// attributes, deleting a missing object is a no-op. Deleting an object
// recursively deletes its children.
type Backend interface {
	// ListObjects enumerates identifiers of objects of class under
	// the given parent path.
	ListObjects(parent []ObjRef, class string) ([]string, error)

	// CreateObject creates (or converges) one object with the given
	// attributes.
	CreateObject(path []ObjRef, attrs []Attr) error

	// DeleteObject removes one object and its children.
	DeleteObject(path []ObjRef) error

	// GetAttr reads a single named attribute.
	GetAttr(path []ObjRef, group, name string) (string, error)

	// SetAttr writes a single named attribute.
	SetAttr(path []ObjRef, group, name, value string) error

	// Clear removes every object.
	Clear() error

	// DumpText renders the whole live tree in the configuration
	// dialect.
	DumpText() (string, error)
}

func formatPath(path []ObjRef) string {
	out := ""
	for i, ref := range path {
		if i > 0 {
			out += " "
		}
		out += ref.String()
	}
	return out
}

func pathError(op string, path []ObjRef) error {
	return fmt.Errorf("%s %s: no such object", op, formatPath(path))
}
