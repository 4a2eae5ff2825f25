package corpus

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/tagger/internal/errs"
)

func TestReaderReadsSentences(t *testing.T) {
	data := "the\tDT\ncat\tNN\nsat\tVB\n\na\tDT\ndog\tNN\n\n"
	r := NewReader(strings.NewReader(data), 2)

	s1, err := r.Next()
	require.NoError(t, err)
	require.Len(t, s1, 3)
	assert.Equal(t, "the", string(s1[0][0]))
	assert.Equal(t, "DT", string(s1[0][1]))

	s2, err := r.Next()
	require.NoError(t, err)
	require.Len(t, s2, 2)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderSkipsLeadingBlankLines(t *testing.T) {
	data := "\n\nthe\tDT\n\n"
	r := NewReader(strings.NewReader(data), 2)
	s, err := r.Next()
	require.NoError(t, err)
	require.Len(t, s, 1)
}

func TestReaderEOFMidSentenceIsMalformed(t *testing.T) {
	data := "the\tDT\ncat\tNN" // no trailing newline, no blank line
	r := NewReader(strings.NewReader(data), 2)
	_, err := r.Next()
	require.Error(t, err)
	assert.Equal(t, errs.CodeMalformedInput, errs.Code(err))
}

func TestReaderRejectsWrongFieldCount(t *testing.T) {
	data := "the\tDT\textra\n\n"
	r := NewReader(strings.NewReader(data), 2)
	_, err := r.Next()
	require.Error(t, err)
	assert.Equal(t, errs.CodeMalformedInput, errs.Code(err))
}

func TestReaderDropsLowControlBytes(t *testing.T) {
	data := "th\x01e\tDT\n\n"
	r := NewReader(strings.NewReader(data), 2)
	s, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "the", string(s[0][0]))
}

func TestWriterInsertsTagColumn(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 1)

	sent := Sentence{
		{[]byte("the")},
		{[]byte("cat")},
	}
	require.NoError(t, w.WriteSentence(sent, []string{"DT", "NN"}))
	require.NoError(t, w.Flush())

	assert.Equal(t, "the\tDT\ncat\tNN\n\n", buf.String())
}

func TestScanOffsetsFindsEachSentenceStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.tsv")
	content := "the\tDT\ncat\tNN\n\na\tDT\ndog\tNN\nran\tVB\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	offsets, err := ScanOffsets(path, 2)
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	assert.Equal(t, int64(0), offsets[0])

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := NewReader(f, 2)
	_, err = f.Seek(offsets[1], io.SeekStart)
	require.NoError(t, err)
	r = NewReader(f, 2)
	s, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", string(s[0][0]))
}
