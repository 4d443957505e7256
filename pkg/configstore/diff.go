package configstore

import (
	"errors"
	"fmt"

	"github.com/openlio/liocfg/pkg/config"
)

// Diff is the difference between the current configuration tree and a
// reference tree (normally the live backend state). Nodes belong to
// the current tree except Removed, which belongs to the reference.
//
// Major differences are identifying attributes: converging them means
// deleting and recreating the owning object. Minor differences are
// plain attribute changes applied in place.
type Diff struct {
	Created []*config.Node // objects missing from the reference
	Removed []*config.Node // reference objects missing from the current tree
	Major   []*config.Node // changed attributes requiring object recreation
	Minor   []*config.Node // changed attributes settable in place

	// MajorObjs owns at least one major difference; MinorObjs owns
	// minor differences only. The two sets are disjoint.
	MajorObjs []*config.Node
	MinorObjs []*config.Node
}

// Empty reports whether the trees are equivalent.
func (d *Diff) Empty() bool {
	return len(d.Created) == 0 && len(d.Removed) == 0 &&
		len(d.Major) == 0 && len(d.Minor) == 0
}

// Summary renders the diff as one line for logs and the CLI.
func (d *Diff) Summary() string {
	return fmt.Sprintf("%d created, %d removed, %d major, %d minor",
		len(d.Created), len(d.Removed), len(d.Major), len(d.Minor))
}

// DiffTrees computes the difference between two configuration trees.
// The comparison is presence-based: attribute keys encode their value,
// so a value change shows up as a key present on one side only.
func DiffTrees(current, reference *config.Node) *Diff {
	d := &Diff{}

	for _, obj := range current.Walk(config.FilterKind(config.KindObj)) {
		ref := reference.GetPath(obj.Path())
		if ref == nil {
			d.Created = append(d.Created, obj)
			continue
		}
		major, minor := diffAttrs(obj, ref)
		d.Major = append(d.Major, major...)
		d.Minor = append(d.Minor, minor...)
		switch {
		case len(major) > 0:
			d.MajorObjs = append(d.MajorObjs, obj)
		case len(minor) > 0:
			d.MinorObjs = append(d.MinorObjs, obj)
		}
	}

	for _, ref := range reference.Walk(config.FilterKind(config.KindObj)) {
		if current.GetPath(ref.Path()) == nil {
			d.Removed = append(d.Removed, ref)
		}
	}
	return d
}

// diffAttrs compares the attributes of one object against its
// reference counterpart. A required or unset direct attribute missing
// from the reference is major: converging it means recreating the
// object. A non-required direct attribute with a real value, or any
// grouped attribute, is minor. Unset grouped attributes are skipped:
// the live side always carries some value for them.
func diffAttrs(obj, ref *config.Node) (major, minor []*config.Node) {
	for _, child := range obj.Nodes() {
		switch child.Kind() {
		case config.KindAttr:
			if ref.Get(child.Key()) != nil {
				continue
			}
			if attr := child.Attr(); (attr != nil && attr.Required) || child.Key()[1] == config.NoValue {
				major = append(major, child)
			} else {
				minor = append(minor, child)
			}
		case config.KindGroup:
			refGroup := ref.Get(child.Key())
			for _, attr := range child.Nodes() {
				if attr.Kind() != config.KindAttr || attr.Key()[1] == config.NoValue {
					continue
				}
				if refGroup == nil || refGroup.Get(attr.Key()) == nil {
					minor = append(minor, attr)
				}
			}
		}
	}
	return major, minor
}

// Diff compares the current tree against the last loaded reference.
func (s *Store) Diff() (*Diff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.reference == nil {
		return nil, errors.New("no reference configuration loaded")
	}
	return DiffTrees(s.current(), s.reference), nil
}

// DiffLive refreshes the reference tree from the live backend and
// compares the current tree against it.
func (s *Store) DiffLive() (*Diff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diffLiveLocked()
}

func (s *Store) diffLiveLocked() (*Diff, error) {
	ref, err := s.liveTreeLocked()
	if err != nil {
		return nil, err
	}
	s.reference = ref
	return DiffTrees(s.current(), ref), nil
}

// LiveDump returns the live backend configuration rendered in
// canonical form, refreshing the reference tree as a side effect.
func (s *Store) LiveDump() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.liveTreeLocked()
	if err != nil {
		return "", err
	}
	s.reference = ref
	return config.Dump(ref, config.FilterNoMissing), nil
}

// liveTreeLocked parses the backend dump into a fresh validated tree.
// Attributes the local policy does not know are accepted as raw, since
// the live system may be newer than the policy.
func (s *Store) liveTreeLocked() (*config.Node, error) {
	if s.backend == nil {
		return nil, errors.New("no live backend")
	}
	text, err := s.backend.DumpText()
	if err != nil {
		return nil, fmt.Errorf("dump live configuration: %w", err)
	}
	stmts, err := config.ParseText(text)
	if err != nil {
		s.stats.ParseErrors++
		return nil, fmt.Errorf("live configuration: %w", err)
	}
	ref := config.NewRoot()
	if _, err := s.loadParseTree(ref, stmts, true); err != nil {
		return nil, fmt.Errorf("live configuration: %w", err)
	}
	return ref, nil
}
