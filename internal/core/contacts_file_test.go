package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberLine_BasicNumber(t *testing.T) {
	p := NewContactsFileParser("")
	number, err := p.ParseNumberLine("+1 (650) 555-1234")

	assert.NoError(t, err)
	assert.Equal(t, "16505551234", number)
}

func TestParseNumberLine_CommentAndBlankLines(t *testing.T) {
	p := NewContactsFileParser("")

	number, err := p.ParseNumberLine("# a comment")
	assert.NoError(t, err)
	assert.Equal(t, "", number)

	number, err = p.ParseNumberLine("   ")
	assert.NoError(t, err)
	assert.Equal(t, "", number)
}

func TestParseNumberLine_NoDigits(t *testing.T) {
	p := NewContactsFileParser("")
	number, err := p.ParseNumberLine("no digits here")

	assert.Error(t, err)
	assert.Equal(t, "", number)
	assert.Contains(t, err.Error(), "no digits")
}

func TestParseNumberLine_DefaultCountryPrefix(t *testing.T) {
	p := NewContactsFileParser("1")

	number, err := p.ParseNumberLine("6505551234")
	assert.NoError(t, err)
	assert.Equal(t, "16505551234", number)

	// Already-prefixed numbers are left alone.
	number, err = p.ParseNumberLine("16505551234")
	assert.NoError(t, err)
	assert.Equal(t, "16505551234", number)
}

func TestParseNumbersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "numbers.txt")
	content := "16505551234\n# comment\n\n16505551234\n16505559999\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := NewContactsFileParser("")
	numbers, err := p.ParseNumbersFile(path)

	assert.NoError(t, err)
	assert.Equal(t, []string{"16505551234", "16505559999"}, numbers)
}

func TestParseNumbersFile_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	p := NewContactsFileParser("")
	numbers, err := p.ParseNumbersFile(path)

	assert.NoError(t, err)
	assert.Len(t, numbers, 0)
}

func TestParseNumbersFile_OnlyComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "comments.txt")
	content := "# just comments\n# more comments\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p := NewContactsFileParser("")
	numbers, err := p.ParseNumbersFile(path)

	assert.NoError(t, err)
	assert.Len(t, numbers, 0)
}

func TestParseNumbersFile_NonExistentFile(t *testing.T) {
	p := NewContactsFileParser("")
	numbers, err := p.ParseNumbersFile("/nonexistent/path/numbers.txt")

	assert.Error(t, err)
	assert.Nil(t, numbers)
}

func TestNewContactsFileParser(t *testing.T) {
	p := NewContactsFileParser("1")

	assert.NotNil(t, p)
	assert.Equal(t, "1", p.defaultCountryPrefix)
}
