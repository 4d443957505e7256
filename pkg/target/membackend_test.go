package target

import (
	"reflect"
	"strings"
	"testing"
)

func diskPath() []ObjRef {
	return []ObjRef{{Class: "storage", ID: "fileio"}, {Class: "disk", ID: "vm1"}}
}

func TestMemBackendCreateAndList(t *testing.T) {
	m := NewMemBackend()
	err := m.CreateObject(diskPath(), []Attr{
		{Name: "path", Value: "/x"},
		{Name: "size", Value: "1.0MB"},
	})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := m.ListObjects(nil, "storage")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"fileio"}) {
		t.Fatalf("expected [fileio], got %v", ids)
	}
	ids, err = m.ListObjects([]ObjRef{{Class: "storage", ID: "fileio"}}, "disk")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"vm1"}) {
		t.Fatalf("expected [vm1], got %v", ids)
	}

	if _, err := m.ListObjects([]ObjRef{{Class: "storage", ID: "nope"}}, "disk"); err == nil {
		t.Error("listing under a missing parent must fail")
	}
}

func TestMemBackendAttrs(t *testing.T) {
	m := NewMemBackend()
	err := m.CreateObject(diskPath(), []Attr{
		{Name: "path", Value: "/x"},
		{Group: "attribute", Name: "foo", Value: "bar"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.GetAttr(diskPath(), "", "path")
	if err != nil || got != "/x" {
		t.Fatalf("GetAttr path: %q, %v", got, err)
	}
	got, err = m.GetAttr(diskPath(), "attribute", "foo")
	if err != nil || got != "bar" {
		t.Fatalf("GetAttr grouped: %q, %v", got, err)
	}
	if _, err := m.GetAttr(diskPath(), "", "nope"); err == nil {
		t.Error("reading a missing attribute must fail")
	}

	// SetAttr replaces: attributes are single-valued.
	if err := m.SetAttr(diskPath(), "", "path", "/y"); err != nil {
		t.Fatal(err)
	}
	got, err = m.GetAttr(diskPath(), "", "path")
	if err != nil || got != "/y" {
		t.Fatalf("after SetAttr: %q, %v", got, err)
	}
	if err := m.SetAttr([]ObjRef{{Class: "storage", ID: "nope"}}, "", "a", "b"); err == nil {
		t.Error("setting on a missing object must fail")
	}
}

func TestMemBackendCreateIsIdempotent(t *testing.T) {
	m := NewMemBackend()
	if err := m.CreateObject(diskPath(), []Attr{{Name: "path", Value: "/x"}}); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateObject(diskPath(), []Attr{{Name: "path", Value: "/y"}}); err != nil {
		t.Fatal(err)
	}
	got, err := m.GetAttr(diskPath(), "", "path")
	if err != nil || got != "/y" {
		t.Fatalf("re-create must converge attributes: %q, %v", got, err)
	}
	ids, _ := m.ListObjects([]ObjRef{{Class: "storage", ID: "fileio"}}, "disk")
	if len(ids) != 1 {
		t.Fatalf("re-create duplicated the object: %v", ids)
	}
}

func TestMemBackendDelete(t *testing.T) {
	m := NewMemBackend()
	if err := m.CreateObject(diskPath(), nil); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteObject(diskPath()); err != nil {
		t.Fatal(err)
	}
	ids, err := m.ListObjects([]ObjRef{{Class: "storage", ID: "fileio"}}, "disk")
	if err != nil || len(ids) != 0 {
		t.Fatalf("object still listed after delete: %v, %v", ids, err)
	}
	// Deleting a missing object is a no-op.
	if err := m.DeleteObject(diskPath()); err != nil {
		t.Errorf("delete of a missing object must not fail: %v", err)
	}
}

func TestMemBackendClearAndDump(t *testing.T) {
	m := NewMemBackend()
	err := m.CreateObject(diskPath(), []Attr{
		{Name: "path", Value: "/x"},
		{Group: "attribute", Name: "foo", Value: "bar"},
	})
	if err != nil {
		t.Fatal(err)
	}

	text, err := m.DumpText()
	if err != nil {
		t.Fatal(err)
	}
	want := `storage fileio disk vm1 {
    path /x
    attribute foo bar
}
`
	if text != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, text)
	}

	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}
	text, err = m.DumpText()
	if err != nil || text != "" {
		t.Errorf("expected empty dump after clear, got %q (%v)", text, err)
	}
}

func TestMemBackendFailOn(t *testing.T) {
	m := NewMemBackend()
	m.FailOn = "storage fileio disk vm1"

	err := m.CreateObject(diskPath(), nil)
	if err == nil || !strings.Contains(err.Error(), "storage fileio disk vm1") {
		t.Fatalf("expected injected failure, got %v", err)
	}
	// Other paths are unaffected.
	if err := m.CreateObject([]ObjRef{{Class: "storage", ID: "iblock"}}, nil); err != nil {
		t.Fatalf("unrelated path failed: %v", err)
	}
	if err := m.DeleteObject(diskPath()); err == nil {
		t.Error("expected injected delete failure")
	}

	m.FailOn = ""
	if err := m.CreateObject(diskPath(), nil); err != nil {
		t.Errorf("failure injection not cleared: %v", err)
	}
}
