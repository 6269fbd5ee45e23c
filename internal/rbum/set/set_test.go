package set

import "testing"

func TestChildSysCode_RootAndNested(t *testing.T) {
	root, err := ChildSysCode("", 0)
	if err != nil || root != "0000" {
		t.Fatalf("expected root sys_code 0000, got %q, err=%v", root, err)
	}

	child, err := ChildSysCode(root, 2)
	if err != nil || child != "00000002" {
		t.Fatalf("expected child sys_code 00000002, got %q, err=%v", child, err)
	}
}

func TestIsDescendant(t *testing.T) {
	parent := "0000"
	child := "00000002"

	if !IsDescendant(parent, child) {
		t.Fatalf("expected %q to be a descendant of %q", child, parent)
	}

	if IsDescendant(child, parent) {
		t.Fatalf("did not expect %q to be a descendant of %q", parent, child)
	}
}

func TestDepth(t *testing.T) {
	if Depth("") != 0 {
		t.Fatalf("expected depth 0 for empty sys_code")
	}

	if Depth("00000002") != 2 {
		t.Fatalf("expected depth 2, got %d", Depth("00000002"))
	}
}
