package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "hello world", CleanText("  hello   world  "))
	assert.Equal(t, "tabs become spaces", CleanText("tabs\tbecome\tspaces"))
	assert.Equal(t, "control stripped", CleanText("control\x00 \x1bstripped"))
	assert.Equal(t, "one line", CleanText("one\nline"))
	assert.Equal(t, "pasted lines joined", CleanText("pasted\r\nlines\rjoined"))
	assert.Empty(t, CleanText("   \t  "))
}

func TestCleanMultiline(t *testing.T) {
	assert.Equal(t, "line one\nline two", CleanMultiline("line one\r\nline two"))
	assert.Equal(t, "a\nb", CleanMultiline("a\rb"))
	assert.Equal(t, "kept\n\nblank", CleanMultiline("kept\n\nblank"))
	assert.Equal(t, "trailing trimmed", CleanMultiline("trailing trimmed   \n\n"))
	assert.Equal(t, "inner spacing", CleanMultiline("inner   spacing"))
}

func TestCleanEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", CleanEmail("  Ada@Example.COM  "))
	assert.Equal(t, "a@b.cobcc:x@evil.test", CleanEmail("a@b.co\r\nBcc: x@evil.test"))
	assert.Equal(t, "noquotes@example.com", CleanEmail(`"noquotes"@example.com`))
	assert.Empty(t, CleanEmail("   "))
}
