package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vellum-lang/intern"
)

func TestValueDefaultIsNumZero(t *testing.T) {
	var v Value
	assert.True(t, v.IsNum())
	assert.Equal(t, 0.0, v.AsNum())
}

func TestValueFalsey(t *testing.T) {
	assert.True(t, Nil.IsFalsey())
	assert.True(t, Bool(false).IsFalsey())
	assert.False(t, Bool(true).IsFalsey())
	assert.False(t, Num(0).IsFalsey())
	assert.False(t, Num(0).IsFalsey())
}

func TestValueEqualsNilMatchesAnything(t *testing.T) {
	assert.True(t, Nil.Equals(Nil))
	assert.True(t, Nil.Equals(Bool(false)))
	assert.True(t, Nil.Equals(Num(0)))
	assert.True(t, Bool(false).Equals(Nil))
	assert.True(t, Num(0).Equals(Nil))
}

func TestValueEqualsNumbersWithinTolerance(t *testing.T) {
	assert.True(t, Num(1.0).Equals(Num(1.0)))
	assert.True(t, Num(1.0).Equals(Num(1.0+1e-10)))
	assert.False(t, Num(1.0).Equals(Num(1.1)))
}

func TestValueEqualsStringsByIdentity(t *testing.T) {
	in := intern.New()
	a := in.Intern("hello")
	b := in.Intern("hello")
	c := in.Intern("world")

	assert.True(t, String(a).Equals(String(b)))
	assert.False(t, String(a).Equals(String(c)))
}

func TestValueEqualsDifferentKindsNeverEqual(t *testing.T) {
	assert.False(t, Bool(true).Equals(Num(1)))
	assert.False(t, Num(0).Equals(Bool(false)))
}

func TestFormatNum(t *testing.T) {
	assert.Equal(t, "5", formatNum(5))
	assert.Equal(t, "1.5", formatNum(1.5))
	assert.Equal(t, "-3", formatNum(-3))
}
