package item

import "strings"

// Visible implements spec.md P2: visible(ctx, i) iff ctx.OwnPaths is a
// prefix of i.OwnPaths (downward visibility), or the item's scope
// level places it at an ancestor level reachable from ctx (upward
// visibility by level). System-scope callers always see everything;
// no own_paths-bypass flag may widen visibility for anyone else
// (spec.md §4.1's access-escalation guard).
func Visible(ctx Context, target Item) bool {
	if ctx.IsSystem {
		return true
	}

	if isOwnPathPrefix(ctx.OwnPaths, target.OwnPaths) {
		return true
	}

	return target.ScopeLevel != ScopePrivate && levelReachable(ctx.OwnPaths, target)
}

// isOwnPathPrefix reports whether parent is a slash-delimited ancestor
// of (or equal to) child, per I1.
func isOwnPathPrefix(parent, child string) bool {
	if parent == "" {
		return true
	}

	if parent == child {
		return true
	}

	return strings.HasPrefix(child, strings.TrimSuffix(parent, "/")+"/")
}

// levelReachable implements upward visibility: an item scoped at L1 or
// above is visible to any context whose own_paths sits at or below the
// number of ancestor segments implied by the scope level. A Root-scope
// item is visible tenant-wide; an L1 item is visible to its immediate
// tenant subtree; and so on.
func levelReachable(callerPaths string, target Item) bool {
	switch target.ScopeLevel {
	case ScopeRoot:
		return true
	case ScopeL1, ScopeL2, ScopeL3:
		ancestors := strings.Split(strings.Trim(target.OwnPaths, "/"), "/")
		depth := int(target.ScopeLevel)

		if depth > len(ancestors) {
			depth = len(ancestors)
		}

		allowedPrefix := strings.Join(ancestors[:depth], "/")

		return isOwnPathPrefix(allowedPrefix, callerPaths) || isOwnPathPrefix(callerPaths, allowedPrefix)
	default:
		return false
	}
}
