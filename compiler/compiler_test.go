package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vellum-lang/intern"
	"vellum-lang/vm"
)

func compile(t *testing.T, src string) *vm.Chunk {
	t.Helper()
	chunk, err := Compile(src, intern.New())
	require.NoError(t, err)
	return chunk
}

func opsOf(c *vm.Chunk) []vm.Opcode {
	var ops []vm.Opcode
	for offset := 0; offset < c.Len(); {
		op := c.GetOp(offset)
		ops = append(ops, op)
		offset += 1 + op.OperandLen()
	}
	return ops
}

func TestCompileArithmeticPrecedence(t *testing.T) {
	c := compile(t, "print 1 + 2 * 3;")
	assert.Equal(t, []vm.Opcode{
		vm.OpConstant, vm.OpConstant, vm.OpConstant,
		vm.OpMultiply, vm.OpAdd, vm.OpPrint, vm.OpReturn,
	}, opsOf(c))
}

func TestCompileStringConcat(t *testing.T) {
	c := compile(t, `print "hi" + " " + "world";`)
	assert.Equal(t, []vm.Opcode{
		vm.OpConstant, vm.OpConstant, vm.OpAdd,
		vm.OpConstant, vm.OpAdd, vm.OpPrint, vm.OpReturn,
	}, opsOf(c))
}

func TestCompileGlobalVarDeclarationAndUse(t *testing.T) {
	c := compile(t, "var a = 1; print a;")
	ops := opsOf(c)
	assert.Contains(t, ops, vm.OpDefineGlobal)
	assert.Contains(t, ops, vm.OpGetGlobal)
}

func TestCompileLocalScopeUsesLocalOps(t *testing.T) {
	c := compile(t, "{ var a = 1; print a; }")
	ops := opsOf(c)
	assert.Contains(t, ops, vm.OpGetLocal)
	assert.NotContains(t, ops, vm.OpDefineGlobal)
	assert.NotContains(t, ops, vm.OpGetGlobal)
}

func TestCompileBlockPopsLocalsAtScopeExit(t *testing.T) {
	c := compile(t, "{ var a = 1; var b = 2; }")
	ops := opsOf(c)
	// two locals declared, both popped at end of block, plus the
	// implicit Return.
	assert.Equal(t, []vm.Opcode{
		vm.OpConstant, vm.OpConstant, vm.OpPop, vm.OpPop, vm.OpReturn,
	}, ops)
}

func TestCompileIfElseEmitsJumps(t *testing.T) {
	c := compile(t, `if (1 < 2) print "y"; else print "n";`)
	ops := opsOf(c)
	assert.Contains(t, ops, vm.OpJumpIfFalse)
	assert.Contains(t, ops, vm.OpJump)
}

func TestCompileComparisonDesugaring(t *testing.T) {
	cases := map[string][]vm.Opcode{
		"1 != 2;": {vm.OpConstant, vm.OpConstant, vm.OpEqual, vm.OpNot, vm.OpPop, vm.OpReturn},
		"1 <= 2;": {vm.OpConstant, vm.OpConstant, vm.OpGreater, vm.OpNot, vm.OpPop, vm.OpReturn},
		"1 >= 2;": {vm.OpConstant, vm.OpConstant, vm.OpLess, vm.OpNot, vm.OpPop, vm.OpReturn},
	}
	for src, want := range cases {
		c := compile(t, src)
		assert.Equal(t, want, opsOf(c), src)
	}
}

func TestCompileReadOwnInitializerIsError(t *testing.T) {
	_, err := Compile("{ var a = a; }", intern.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't read local variable in its own initializer.")
}

func TestCompileDuplicateLocalIsError(t *testing.T) {
	_, err := Compile("{ var a = 1; var a = 2; }", intern.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Already a variable with this name in this scope.")
}

func TestCompileMissingExpressionIsError(t *testing.T) {
	_, err := Compile("print ;", intern.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expect expression.")
}

func TestCompileInvalidAssignmentTargetIsError(t *testing.T) {
	_, err := Compile("1 + 2 = 3;", intern.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid assignment target.")
}

func TestCompileShadowingAcrossScopesIsAllowed(t *testing.T) {
	_, err := Compile("var a = 1; { var a = 2; print a; } print a;", intern.New())
	require.NoError(t, err)
}

func TestCompileMissingSemicolonIsError(t *testing.T) {
	_, err := Compile("print 1", intern.New())
	require.Error(t, err)
}
