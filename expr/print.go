// Copyright 2026 The TensorFuse Authors. SPDX-License-Identifier: Apache-2.0

package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
)

// String renders the expression in a compact C-like form, for debugging and
// for structural assertions in tests.
func (e Expr) String() string {
	if !e.Valid() {
		return "<invalid>"
	}
	var sb strings.Builder
	e.print(&sb)
	return sb.String()
}

func (e Expr) print(sb *strings.Builder) {
	n := e.node()
	switch n.kind {
	case KindIntImm:
		sb.WriteString(strconv.FormatInt(int64(n.ival), 10))
	case KindFloatImm:
		sb.WriteString(strconv.FormatFloat(float64(n.fval), 'g', -1, 32))
		sb.WriteString("f")
	case KindVar:
		sb.WriteString(n.name)
	case KindBinary:
		op := BinaryOp(n.op)
		if op == OpMin || op == OpMax {
			sb.WriteString(binaryOpSymbols[op])
			sb.WriteString("(")
			e.Arg(0).print(sb)
			sb.WriteString(", ")
			e.Arg(1).print(sb)
			sb.WriteString(")")
			return
		}
		sb.WriteString("(")
		e.Arg(0).print(sb)
		sb.WriteString(" ")
		sb.WriteString(binaryOpSymbols[op])
		sb.WriteString(" ")
		e.Arg(1).print(sb)
		sb.WriteString(")")
	case KindCompareSelect:
		sb.WriteString("select(")
		e.Arg(0).print(sb)
		sb.WriteString(" ")
		sb.WriteString(compareOpSymbols[n.op])
		sb.WriteString(" ")
		e.Arg(1).print(sb)
		sb.WriteString(", ")
		e.Arg(2).print(sb)
		sb.WriteString(", ")
		e.Arg(3).print(sb)
		sb.WriteString(")")
	case KindIfThenElse:
		sb.WriteString("ifThenElse(")
		e.Arg(0).print(sb)
		sb.WriteString(", ")
		e.Arg(1).print(sb)
		sb.WriteString(", ")
		e.Arg(2).print(sb)
		sb.WriteString(")")
	case KindCast:
		if n.dtype == dtypes.Int32 {
			sb.WriteString("int32(")
		} else {
			sb.WriteString("float32(")
		}
		e.Arg(0).print(sb)
		sb.WriteString(")")
	case KindIntrinsic:
		sb.WriteString(Intrinsic(n.op).Name())
		sb.WriteString("(")
		for i := 0; i < int(n.nArgs); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.Arg(i).print(sb)
		}
		sb.WriteString(")")
	case KindLoad:
		sb.WriteString(e.LoadBuffer().Name())
		sb.WriteString("[")
		e.Arg(0).print(sb)
		sb.WriteString("]")
	default:
		sb.WriteString("<invalid>")
	}
}

// String renders the statement tree with indentation.
func (s Stmt) String() string {
	if !s.Valid() {
		return "<invalid>"
	}
	var sb strings.Builder
	s.print(&sb, 0)
	return sb.String()
}

func (s Stmt) print(sb *strings.Builder, indent int) {
	pad := strings.Repeat("  ", indent)
	n := s.node()
	switch n.kind {
	case StmtBlock:
		for _, child := range s.Body() {
			child.print(sb, indent)
		}
	case StmtFor:
		label := ""
		switch n.axis {
		case AxisBlock:
			label = " <block>"
		case AxisThread:
			label = " <thread>"
		}
		fmt.Fprintf(sb, "%sfor %s in 0..%s%s {\n", pad, s.LoopVar().String(), s.LoopExtent().String(), label)
		s.LoopBody().print(sb, indent+1)
		fmt.Fprintf(sb, "%s}\n", pad)
	case StmtIf:
		fmt.Fprintf(sb, "%sif %s {\n", pad, s.IfCond().String())
		s.IfBody().print(sb, indent+1)
		fmt.Fprintf(sb, "%s}\n", pad)
	case StmtStore:
		fmt.Fprintf(sb, "%s%s[%s] = %s\n", pad, s.StoreBuffer().Name(), s.StoreIndex().String(), s.StoreValue().String())
	}
}
