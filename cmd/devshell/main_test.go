package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPathRoot(t *testing.T) {
	dir, name := splitPath("/foo")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "foo", name)
}

func TestSplitPathNested(t *testing.T) {
	dir, name := splitPath("/a/b/c")
	assert.Equal(t, "/a/b", dir)
	assert.Equal(t, "c", name)
}
