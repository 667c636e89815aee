// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package expr

import "github.com/gomlx/exceptions"

// RewriteFunc is applied to every expression node during RewriteExpr, after
// its children have already been rewritten. Returning ok=false keeps the
// node; returning ok=true replaces it.
type RewriteFunc func(e Expr) (replacement Expr, ok bool)

// RewriteExpr rebuilds the expression tree bottom-up, applying fn to every
// node. Results are memoized per node, so shared subtrees are rewritten
// once. Nodes whose children did not change are reused, not copied.
func (a *Arena) RewriteExpr(e Expr, fn RewriteFunc) Expr {
	a.alive()
	memo := make(map[int32]Expr)
	return a.rewrite(e, fn, memo)
}

func (a *Arena) rewrite(e Expr, fn RewriteFunc, memo map[int32]Expr) Expr {
	if cached, found := memo[e.id]; found {
		return cached
	}
	n := e.node()
	newArgs := make([]Expr, n.nArgs)
	changed := false
	for i := 0; i < int(n.nArgs); i++ {
		child := Expr{a: a, id: n.args[i]}
		newArgs[i] = a.rewrite(child, fn, memo)
		changed = changed || newArgs[i].id != child.id
	}

	rebuilt := e
	if changed {
		rebuilt = a.rebuildWithArgs(e, newArgs)
	}
	if replacement, ok := fn(rebuilt); ok {
		rebuilt = replacement
	}
	memo[e.id] = rebuilt
	return rebuilt
}

// rebuildWithArgs creates a copy of e's node with new children. Binary
// nodes go back through their constructor so immediate folding applies to
// rewritten arithmetic too.
func (a *Arena) rebuildWithArgs(e Expr, args []Expr) Expr {
	n := *e.node() // copy
	for i, arg := range args {
		n.args[i] = arg.id
	}
	// Re-derive the dtype for nodes whose type follows their children.
	switch n.kind {
	case KindBinary:
		return a.binary(BinaryOp(n.op), args[0], args[1])
	case KindCompareSelect:
		n.dtype = args[2].DType()
	case KindIfThenElse:
		n.dtype = args[1].DType()
	}
	return a.newExpr(n)
}

// Substitute replaces every occurrence of the given variables by their
// mapped expressions. Keys must be KindVar handles.
func (a *Arena) Substitute(e Expr, subs map[Expr]Expr) Expr {
	for v := range subs {
		if v.Kind() != KindVar {
			exceptions.Panicf("expr: Substitute key is a %v node, want KindVar", v.Kind())
		}
	}
	return a.RewriteExpr(e, func(node Expr) (Expr, bool) {
		if node.Kind() != KindVar {
			return Expr{}, false
		}
		if replacement, found := subs[node]; found {
			return replacement, true
		}
		return Expr{}, false
	})
}
