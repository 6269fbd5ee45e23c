package item

import "testing"

func TestVisible_DownwardPrefix(t *testing.T) {
	ctx := Context{OwnPaths: "t1"}
	target := Item{OwnPaths: "t1/app1", ScopeLevel: ScopePrivate}

	if !Visible(ctx, target) {
		t.Fatalf("expected t1 to see t1/app1 (downward prefix)")
	}
}

func TestVisible_DeniesUnrelatedPrivateScope(t *testing.T) {
	ctx := Context{OwnPaths: "t2"}
	target := Item{OwnPaths: "t1/app1", ScopeLevel: ScopePrivate}

	if Visible(ctx, target) {
		t.Fatalf("expected t2 to be denied visibility into t1/app1")
	}
}

func TestVisible_RootScopeAlwaysVisible(t *testing.T) {
	ctx := Context{OwnPaths: "t2"}
	target := Item{OwnPaths: "t1/app1", ScopeLevel: ScopeRoot}

	if !Visible(ctx, target) {
		t.Fatalf("expected Root scope item to be visible tenant-wide")
	}
}

func TestVisible_SystemContextBypassesScope(t *testing.T) {
	ctx := Context{OwnPaths: "", IsSystem: true}
	target := Item{OwnPaths: "t1/app1", ScopeLevel: ScopePrivate}

	if !Visible(ctx, target) {
		t.Fatalf("expected system context to see everything")
	}
}

func TestVisible_NoBypassForNonSystemCaller(t *testing.T) {
	// A non-system caller must never gain visibility merely by having
	// scope level set without the prefix or level relationship holding.
	ctx := Context{OwnPaths: "t2/appX"}
	target := Item{OwnPaths: "t1/app1", ScopeLevel: ScopePrivate}

	if Visible(ctx, target) {
		t.Fatalf("non-system caller must not escalate visibility across unrelated own_paths")
	}
}
