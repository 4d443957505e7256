package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateValue(t *testing.T) {
	root := NewRoot()
	fileio := addObj(t, root, "storage", "fileio")
	addObj(t, fileio, "disk", "vm1")

	tests := []struct {
		typ     string
		in      string
		want    string
		wantErr bool
	}{
		{"bool", "yes", "yes", false},
		{"bool", "TRUE", "yes", false},
		{"bool", "enable", "yes", false},
		{"bool", "0", "no", false},
		{"bool", "disable", "no", false},
		{"bool", "maybe", "", true},

		{"bytes", "1MB", "1.0MB", false},
		{"bytes", "512kB", "512.0KB", false},
		{"bytes", "2.5GB", "2.5GB", false},
		{"bytes", "16", "16.0B", false},
		{"bytes", "huge", "", true},

		{"int", "42", "42", false},
		{"int", "-7", "-7", false},
		{"int", "0", "0", false},
		{"int", "3.5", "", true},

		{"posint", "1", "1", false},
		{"posint", "0", "", true},
		{"posint", "-2", "", true},

		{"erl", "0", "0", false},
		{"erl", "2", "2", false},
		{"erl", "3", "", true},

		{"ipport", "192.168.0.1:3260", "192.168.0.1:3260", false},
		{"ipport", "[::1]:3260", "[::1]:3260", false},
		{"ipport", "192.168.0.1:99999", "", true},
		{"ipport", "192.168.0.1", "", true},
		{"ipport", "not.an.ip:3260", "", true},

		{"str", "plain", "plain", false},
		{"str", "has*glob", "", true},
		{"str", "has[set]", "", true},

		{"iqn", "iqn.2003-01.org.example:t1", "iqn.2003-01.org.example:t1", false},
		{"iqn", "IQN.2003-01.ORG.EXAMPLE:T1", "iqn.2003-01.org.example:t1", false},
		{"iqn", "iqn.broken", "", true},

		{"naa", "naa.6001405101837416", "naa.6001405101837416", false},
		{"naa", "NAA.6001405101837416", "naa.6001405101837416", false},
		{"naa", "naa.60014", "", true},

		{"backend", "fileio:vm1", "fileio:vm1", false},
		{"backend", "fileio:nope", "", true},
		{"backend", "nocolon", "", true},

		{"nonsense", "x", "", true},
	}
	for _, tt := range tests {
		got, err := validateValue(tt.typ, tt.in, root)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s %q: expected error, got %q", tt.typ, tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %q: unexpected error %v", tt.typ, tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s %q: expected %q, got %q", tt.typ, tt.in, tt.want, got)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	policy, err := DefaultPolicy()
	if err != nil {
		t.Fatalf("load default policy: %v", err)
	}

	disk := policy.GetPath([][]string{{"storage", "fileio"}, {"disk", "%str"}})
	if disk == nil {
		t.Fatal("default policy lacks storage fileio disk rule")
	}
	if disk.Data().IDType != "str" {
		t.Errorf("disk id type: expected str, got %q", disk.Data().IDType)
	}
	path := disk.Get([]string{"path", "%str"})
	if path == nil || path.Attr() == nil {
		t.Fatal("default policy lacks disk path rule")
	}
	if path.Attr().ValType != "str" || !path.Attr().Required {
		t.Errorf("path rule: expected required str, got %+v", path.Attr())
	}
	buffered := disk.Get([]string{"buffered", "%bool(yes)"})
	if buffered == nil || !buffered.Attr().HasDefault || buffered.Attr().Default != "yes" {
		t.Errorf("buffered rule: expected default yes, got %v", buffered)
	}

	lun := policy.GetPath([][]string{
		{"fabric", "iscsi"}, {"target", "%iqn"}, {"tpgt", "%posint"}, {"lun", "%int"},
	})
	if lun == nil {
		t.Fatal("default policy lacks the lun rule")
	}
	backend := lun.Get([]string{"backend", "%backend"})
	if backend == nil || backend.Attr().ValType != "backend" {
		t.Fatal("default policy lacks the lun backend rule")
	}

	targetLun := policy.GetPath([][]string{
		{"fabric", "iscsi"}, {"target", "%iqn"}, {"tpgt", "%posint"},
		{"acl", "%iqn"}, {"mapped_lun", "%int"}, {"target_lun", "@(2 lun .*)"},
	})
	if targetLun == nil {
		t.Fatal("default policy lacks the target_lun reference rule")
	}
	if targetLun.Attr().RefUp != 2 || len(targetLun.Attr().RefPath) != 1 {
		t.Errorf("target_lun rule: unexpected ref %+v", targetLun.Attr())
	}
}

func TestLoadPolicyDir(t *testing.T) {
	dir := t.TempDir()
	text := "storage ramdisk {\n    disk %str {\n        size %bytes\n    }\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "custom.lio"), []byte(text), 0644); err != nil {
		t.Fatal(err)
	}

	policy, err := LoadPolicy(dir)
	if err != nil {
		t.Fatalf("load policy dir: %v", err)
	}
	if policy.GetPath([][]string{{"storage", "ramdisk"}}) == nil {
		t.Fatal("custom policy file not loaded")
	}
	if policy.GetPath([][]string{{"fabric", "iscsi"}}) != nil {
		t.Fatal("policy dir must replace the built-in policy, not merge with it")
	}

	// An empty directory falls back to the built-in policy.
	policy, err = LoadPolicy(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if policy.GetPath([][]string{{"storage", "fileio"}}) == nil {
		t.Fatal("empty policy dir did not fall back to the built-in policy")
	}

	// A missing directory does as well.
	policy, err = LoadPolicy(filepath.Join(dir, "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if policy.GetPath([][]string{{"storage", "fileio"}}) == nil {
		t.Fatal("missing policy dir did not fall back to the built-in policy")
	}
}

func TestMergePolicyText(t *testing.T) {
	root := NewRoot()
	if err := MergePolicyText(root, "storage fileio disk %str path %str"); err != nil {
		t.Fatal(err)
	}
	if err := MergePolicyText(root, "storage iblock disk %str path %str"); err != nil {
		t.Fatal(err)
	}
	if root.GetPath([][]string{{"storage", "fileio"}}) == nil ||
		root.GetPath([][]string{{"storage", "iblock"}}) == nil {
		t.Fatal("merged policies must keep both branches")
	}
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	policy, err := DefaultPolicy()
	if err != nil {
		t.Fatalf("load default policy: %v", err)
	}
	return NewValidator(policy)
}

func TestValidateObj(t *testing.T) {
	v := newTestValidator(t)
	root := NewRoot()

	stmts := mustParse(t, "storage fileio")
	tok := stmts[0][0]
	if err := v.ValidateObj(tok, root); err != nil {
		t.Fatalf("storage fileio: %v", err)
	}
	if len(tok.PolicyPath) != 1 || tok.PolicyPath[0][0] != "storage" {
		t.Errorf("unexpected policy path %v", tok.PolicyPath)
	}

	tok = mustParse(t, "storage nope")[0][0]
	err := v.ValidateObj(tok, root)
	if err == nil || !strings.Contains(err.Error(), "fileio") {
		t.Errorf("bad identifier: expected error naming the legal ids, got %v", err)
	}
	var perr *PolicyError
	if !errors.As(err, &perr) {
		t.Errorf("expected PolicyError, got %T", err)
	}

	tok = mustParse(t, "portal 1.2.3.4:3260")[0][0]
	if err := v.ValidateObj(tok, root); err == nil ||
		!strings.Contains(err.Error(), "unknown object type") {
		t.Errorf("portal at root: expected unknown object type, got %v", err)
	}
}

// newDiskNode builds a validated disk object the way loadParseTree
// would, for attribute-level tests.
func newDiskNode(t *testing.T) *Node {
	t.Helper()
	root := NewRoot()
	obj, err := root.Set([]string{"storage", "fileio"}, KindObj, NodeData{
		PolicyPath: [][]string{{"storage", "fileio"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	disk, err := obj.Set([]string{"disk", "vm1"}, KindObj, NodeData{
		PolicyPath: [][]string{{"storage", "fileio"}, {"disk", "%str"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return disk
}

func TestValidateAttr(t *testing.T) {
	v := newTestValidator(t)
	disk := newDiskNode(t)

	tok := mustParse(t, "size 1MB")[0][0]
	if err := v.ValidateAttr(tok, disk, false); err != nil {
		t.Fatalf("size 1MB: %v", err)
	}
	if tok.Key[1] != "1.0MB" {
		t.Errorf("expected normalized value 1.0MB, got %q", tok.Key[1])
	}
	if tok.ValType != "bytes" || !tok.Required {
		t.Errorf("expected required bytes attr, got %+v", tok)
	}

	tok = mustParse(t, "size banana")[0][0]
	if err := v.ValidateAttr(tok, disk, false); err == nil ||
		!strings.Contains(err.Error(), "invalid value") {
		t.Errorf("bad value: expected invalid value error, got %v", err)
	}

	tok = mustParse(t, "flavor vanilla")[0][0]
	if err := v.ValidateAttr(tok, disk, false); err == nil ||
		!strings.Contains(err.Error(), "unknown attribute") {
		t.Errorf("unknown attr: expected error, got %v", err)
	}

	// Dumps from newer live systems may carry attributes the local
	// policy does not know; allowNew accepts them as raw.
	tok = mustParse(t, "flavor vanilla")[0][0]
	if err := v.ValidateAttr(tok, disk, true); err != nil {
		t.Fatalf("allowNew: %v", err)
	}
	if tok.ValType != "raw" || tok.Required {
		t.Errorf("allowNew: expected optional raw attr, got %+v", tok)
	}
}

func TestAddMissing(t *testing.T) {
	v := newTestValidator(t)
	disk := newDiskNode(t)

	if err := v.AddMissing(disk); err != nil {
		t.Fatal(err)
	}

	path := disk.Get([]string{"path", NoValue})
	if path == nil {
		t.Fatal("AddMissing did not materialize the unset path attribute")
	}
	if !path.Attr().Required || path.Attr().Source != "policy" {
		t.Errorf("path: unexpected payload %+v", path.Attr())
	}
	buffered := disk.Get([]string{"buffered", "yes"})
	if buffered == nil {
		t.Fatal("AddMissing did not materialize buffered with its default")
	}

	// Supplied attributes are left alone.
	disk2 := newDiskNode(t)
	tok := mustParse(t, "size 2MB")[0][0]
	if err := v.ValidateAttr(tok, disk2, false); err != nil {
		t.Fatal(err)
	}
	if _, err := disk2.Set(tok.Key, KindAttr, NodeData{
		PolicyPath: tok.PolicyPath,
		Attr:       &AttrData{ValType: tok.ValType, Value: tok.Key[1], Required: tok.Required, Source: "config"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := v.AddMissing(disk2); err != nil {
		t.Fatal(err)
	}
	if disk2.Get([]string{"size", NoValue}) != nil {
		t.Fatal("AddMissing shadowed a supplied attribute")
	}
	if disk2.Get([]string{"size", "2.0MB"}) == nil {
		t.Fatal("supplied size attribute lost")
	}
}
