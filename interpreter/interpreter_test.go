package interpreter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vellum-lang/vm"
)

func TestInterpretArithmeticAndPrint(t *testing.T) {
	it := New()
	var out bytes.Buffer
	it.SetOutput(&out)
	require.NoError(t, it.Run("print 1 + 2 * 3;"))
	assert.Equal(t, "7\n", out.String())
}

func TestInterpretStringConcat(t *testing.T) {
	it := New()
	var out bytes.Buffer
	it.SetOutput(&out)
	require.NoError(t, it.Run(`print "hi" + " " + "world";`))
	assert.Equal(t, "\"hi world\"\n", out.String())
}

func TestInterpretScopedShadowing(t *testing.T) {
	it := New()
	var out bytes.Buffer
	it.SetOutput(&out)
	require.NoError(t, it.Run("var a = 1; { var a = 2; print a; } print a;"))
	assert.Equal(t, "2\n1\n", out.String())
}

func TestInterpretIfElseBothArms(t *testing.T) {
	it := New()
	var out bytes.Buffer
	it.SetOutput(&out)
	require.NoError(t, it.Run(`if (1 < 2) print "y"; else print "n";`))
	require.NoError(t, it.Run(`if (1 > 2) print "y"; else print "n";`))
	assert.Equal(t, "\"y\"\n\"n\"\n", out.String())
}

func TestInterpretFalseyAndEquality(t *testing.T) {
	it := New()
	var out bytes.Buffer
	it.SetOutput(&out)
	require.NoError(t, it.Run("print !nil; print !0; print nil == false;"))
	assert.Equal(t, "true\nfalse\ntrue\n", out.String())
}

func TestInterpretGlobalsPersistAcrossCalls(t *testing.T) {
	it := New()
	require.NoError(t, it.Run("var count = 0;"))
	require.NoError(t, it.Run("count = count + 1; print count;"))
	require.NoError(t, it.Run("count = count + 1; print count;"))
}

func TestInterpretUndefinedGlobalIsRuntimeError(t *testing.T) {
	it := New()
	err := it.Run("print a;")
	assert.ErrorIs(t, err, vm.ErrRuntime)
}

func TestInterpretTypeMismatchIsRuntimeError(t *testing.T) {
	it := New()
	err := it.Run(`1 + "a";`)
	assert.ErrorIs(t, err, vm.ErrRuntime)
}

func TestInterpretLocalSelfReferenceIsCompileError(t *testing.T) {
	it := New()
	err := it.Run("{ var a = a; }")
	assert.ErrorIs(t, err, vm.ErrCompile)
}

func TestInterpretManyConstantsExercisesLongForm(t *testing.T) {
	it := New()
	var src string
	for i := 0; i < 300; i++ {
		src += `var s` + itoa(i) + ` = "` + itoa(i) + `";`
	}
	src += `print s256;`
	require.NoError(t, it.Run(src))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
