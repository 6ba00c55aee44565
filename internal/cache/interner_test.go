package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInternerDedup(t *testing.T) {
	in := NewInterner()
	a := in.Intern("func")
	b := in.Intern("return")
	c := in.Intern("func")

	assert.Equal(t, a, c)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, in.Len())
	assert.Equal(t, "func", in.Resolve(a))
	assert.Equal(t, "return", in.Resolve(b))
}

func TestInternerInsertionOrder(t *testing.T) {
	in := NewInterner()
	assert.Equal(t, Sym(0), in.Intern("first"))
	assert.Equal(t, Sym(1), in.Intern("second"))
	assert.Equal(t, Sym(0), in.Intern("first"))
}

func TestInternerResolveOutOfRange(t *testing.T) {
	in := NewInterner()
	assert.Equal(t, "", in.Resolve(Sym(99)))
}
