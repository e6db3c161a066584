package pathkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndString(t *testing.T) {
	require.True(t, New("").IsEmpty())
	require.True(t, New("/").IsEmpty())
	assert.Equal(t, "/a/b/c", New("/a/b/c").String())
	assert.Equal(t, "/a/b/c", New("a//b/c/").String())
	assert.Equal(t, "/", Empty.String())
}

func TestChildAndParent(t *testing.T) {
	p := New("a/b")
	child := p.Child("c")
	assert.Equal(t, "/a/b/c", child.String())
	assert.Equal(t, "/a/b", child.Parent().String())
	assert.True(t, Empty.Parent().IsEmpty())
}

func TestFrontPopFront(t *testing.T) {
	p := New("a/b/c")
	front, ok := p.Front()
	require.True(t, ok)
	assert.Equal(t, "a", front)
	assert.Equal(t, "/b/c", p.PopFront().String())

	_, ok = Empty.Front()
	assert.False(t, ok)
	assert.True(t, Empty.PopFront().IsEmpty())
}

func TestContainsAndRelativeTo(t *testing.T) {
	ancestor := New("a/b")
	p := New("a/b/c/d")
	assert.True(t, ancestor.Contains(p))
	assert.False(t, p.Contains(ancestor))

	rel, ok := p.RelativeTo(ancestor)
	require.True(t, ok)
	assert.Equal(t, "/c/d", rel.String())

	_, ok = New("x/y").RelativeTo(ancestor)
	assert.False(t, ok)

	rel, ok = p.RelativeTo(p)
	require.True(t, ok)
	assert.True(t, rel.IsEmpty())
}

func TestCompareOrdering(t *testing.T) {
	assert.True(t, New("a").Less(New("b")))
	assert.True(t, New("a").Less(New("a/b")))
	assert.False(t, New("a/b").Less(New("a")))
	assert.Equal(t, 0, New("a/b").Compare(New("a/b")))
}

func TestEqual(t *testing.T) {
	assert.True(t, New("a/b").Equal(New("a/b")))
	assert.False(t, New("a/b").Equal(New("a/c")))
}
