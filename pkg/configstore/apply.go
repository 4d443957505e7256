package configstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openlio/liocfg/pkg/config"
	"github.com/openlio/liocfg/pkg/target"
)

// applyStep is one precomputed backend operation.
type applyStep struct {
	desc string
	run  func() error
}

// Applier drives a precomputed apply plan one backend operation at a
// time. Each Next call performs exactly one step and then yields its
// description, so stopping between calls always leaves the backend in
// a state where every yielded step has fully happened. A failed step
// aborts the plan; applied steps are not rolled back, and the caller
// retries the whole apply, which is safe because backend create and
// delete are idempotent.
type Applier struct {
	store *Store
	steps []applyStep
	next  int
}

// Apply computes the plan that converges the live backend to the
// current tree. Brute force clears the backend and recreates every
// object in tree order. Incremental diffs against the live state,
// deletes removed and changed objects in reverse tree order, then
// recreates changed and new objects in forward tree order.
func (s *Store) Apply(bruteForce bool) (*Applier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil, errors.New("no live backend")
	}
	a := &Applier{store: s}
	if bruteForce {
		a.steps = append(a.steps, applyStep{desc: "clear", run: s.backend.Clear})
		for _, obj := range s.current().Walk(config.FilterKind(config.KindObj)) {
			a.steps = append(a.steps, s.createStep(obj))
		}
		return a, nil
	}

	diff, err := s.diffLiveLocked()
	if err != nil {
		return nil, err
	}
	var deletes, creates []*config.Node
	deletes = append(deletes, diff.Removed...)
	deletes = append(deletes, diff.MajorObjs...)
	deletes = append(deletes, diff.MinorObjs...)
	creates = append(creates, diff.Created...)
	creates = append(creates, diff.MajorObjs...)
	creates = append(creates, diff.MinorObjs...)

	for _, obj := range sortObjs(deletes, true) {
		a.steps = append(a.steps, s.deleteStep(obj))
	}
	for _, obj := range sortObjs(creates, false) {
		a.steps = append(a.steps, s.createStep(obj))
	}
	return a, nil
}

func (s *Store) createStep(obj *config.Node) applyStep {
	path := objPath(obj)
	attrs := objAttrs(obj)
	return applyStep{
		desc: "create " + obj.PathStr(),
		run: func() error {
			return s.backend.CreateObject(path, attrs)
		},
	}
}

func (s *Store) deleteStep(obj *config.Node) applyStep {
	path := objPath(obj)
	return applyStep{
		desc: "delete " + obj.PathStr(),
		run: func() error {
			return s.backend.DeleteObject(path)
		},
	}
}

// Next performs the next step of the plan and reports what it did.
// The bool is false when the plan is exhausted or a step failed.
func (a *Applier) Next() (string, bool, error) {
	if a.next >= len(a.steps) {
		return "", false, nil
	}
	step := a.steps[a.next]
	a.next++

	err := step.run()
	a.store.mu.Lock()
	if err != nil {
		a.store.stats.ApplyFailures++
	} else {
		a.store.stats.ApplySteps++
	}
	a.store.mu.Unlock()
	if err != nil {
		return step.desc, false, fmt.Errorf("%s: %w", step.desc, err)
	}
	slog.Info("apply step", "step", a.next, "total", len(a.steps), "op", step.desc)
	return step.desc, true, nil
}

// Run drains the plan, returning the number of steps applied.
func (a *Applier) Run() (int, error) {
	applied := 0
	for {
		_, ok, err := a.Next()
		if err != nil {
			return applied, err
		}
		if !ok {
			return applied, nil
		}
		applied++
	}
}

// Len returns the total number of steps in the plan.
func (a *Applier) Len() int { return len(a.steps) }

// sortObjs orders objects in tree creation order (reversed for
// deletes, so dependents go before their dependencies) and drops
// duplicates, since an object may appear in more than one diff list.
func sortObjs(objs []*config.Node, reverse bool) []*config.Node {
	seen := make(map[string]bool, len(objs))
	out := make([]*config.Node, 0, len(objs))
	for _, obj := range objs {
		id := obj.PathStr()
		if !seen[id] {
			seen[id] = true
			out = append(out, obj)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := config.ComparePaths(out[i].Path(), out[j].Path())
		if reverse {
			return c > 0
		}
		return c < 0
	})
	return out
}

// objPath converts an object node's tree path to backend references.
func objPath(obj *config.Node) []target.ObjRef {
	keys := obj.Path()
	path := make([]target.ObjRef, len(keys))
	for i, key := range keys {
		path[i] = target.ObjRef{Class: key[0], ID: key[1]}
	}
	return path
}

// objAttrs collects an object's direct and grouped attributes for a
// backend create call. Unset attributes stay local: the backend keeps
// its own defaults for them.
func objAttrs(obj *config.Node) []target.Attr {
	var attrs []target.Attr
	for _, child := range obj.Nodes() {
		switch child.Kind() {
		case config.KindAttr:
			if child.Key()[1] != config.NoValue {
				attrs = append(attrs, target.Attr{Name: child.Key()[0], Value: child.Key()[1]})
			}
		case config.KindGroup:
			for _, attr := range child.Nodes() {
				if attr.Kind() == config.KindAttr && attr.Key()[1] != config.NoValue {
					attrs = append(attrs, target.Attr{
						Group: child.Key()[0],
						Name:  attr.Key()[0],
						Value: attr.Key()[1],
					})
				}
			}
		}
	}
	return attrs
}
