// Package corpus reads and writes the tab-separated sentence format
// spec.md §3 and §6 describe, grounded directly on the reference
// implementation's read_sequence and its tag-reinsertion output loop.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/lab/tagger/internal/errs"
)

// MaxFieldLen is the reference implementation's MAX_STR: any single field
// longer than MaxFieldLen-1 bytes is truncated to MaxFieldLen-1 bytes.
const MaxFieldLen = 0x1000

// MaxItems bounds the number of rows in one sentence (MAX_ITEMS).
const MaxItems = 0x400

// MaxSentenceBytes bounds the bytes of one sentence's rows, counting each
// field plus its tab or newline separator.
const MaxSentenceBytes = 0x10000

// MaxSentences bounds a prescanned offset table, matching the reference
// implementation's max_sents guard in train().
const MaxSentences = 0x100000

// Row is one tab-separated row's fields.
type Row = [][]byte

// Sentence is a run of rows terminated by a blank line.
type Sentence []Row

// Reader reads tab-separated sentences from an underlying stream. Rows
// within one Sentence must carry exactly NFields columns; a blank line ends
// the sentence the same way a zero-length first field does in
// read_sequence.
type Reader struct {
	br      *bufio.Reader
	nFields int
}

// NewReader wraps r, expecting nFields tab-separated columns per row.
func NewReader(r io.Reader, nFields int) *Reader {
	return &Reader{br: bufio.NewReader(r), nFields: nFields}
}

// Next reads one sentence, returning io.EOF when the stream is exhausted
// with no sentence in progress. EOF reached mid-sentence (rows read but no
// terminating blank line, or a row started but not terminated by its own
// newline) is reported as a MalformedInput TaggerError, mirroring
// read_sequence's rv<0-but-not-feof error path. A sentence of more than
// MaxItems rows or more than MaxSentenceBytes bytes is also MalformedInput.
func (r *Reader) Next() (Sentence, error) {
	var sent Sentence
	size := 0
	for {
		row, blank, err := r.readRow()
		if err != nil {
			if err == io.EOF {
				if len(sent) == 0 && !blank {
					return nil, io.EOF
				}
				if len(sent) == 0 {
					return nil, io.EOF
				}
				return nil, errs.New(errs.CodeMalformedInput, "unexpected EOF mid-sentence")
			}
			return nil, err
		}
		if blank {
			if len(sent) == 0 {
				continue
			}
			return sent, nil
		}
		sent = append(sent, row)
		if len(sent) > MaxItems {
			return nil, errs.New(errs.CodeMalformedInput, "sentence exceeds maximum length",
				fmt.Sprintf("max=%d", MaxItems))
		}
		for _, f := range row {
			size += len(f) + 1
		}
		if size > MaxSentenceBytes {
			return nil, errs.New(errs.CodeMalformedInput, "sentence exceeds maximum size",
				fmt.Sprintf("max=%d", MaxSentenceBytes))
		}
	}
}

// readRow reads one tab/newline-terminated row. blank is true when the row
// is an empty line (sentence terminator); in that case row is nil.
func (r *Reader) readRow() (row Row, blank bool, err error) {
	fields := make(Row, 0, r.nFields)
	var cur []byte

	for field := 0; ; {
		b, err := r.br.ReadByte()
		if err == io.EOF {
			if field > 0 || len(cur) > 0 {
				return nil, false, errs.New(errs.CodeMalformedInput, "unexpected EOF mid-row")
			}
			return nil, false, io.EOF
		}
		if err != nil {
			return nil, false, err
		}

		switch {
		case b == '\t':
			if field == r.nFields-1 {
				return nil, false, errs.New(errs.CodeMalformedInput, "unexpected tab in final field")
			}
			fields = append(fields, truncate(cur))
			cur = nil
			field++
		case b == '\n':
			if field == 0 && len(cur) == 0 {
				return nil, true, nil
			}
			if field != r.nFields-1 {
				return nil, false, errs.New(errs.CodeMalformedInput,
					fmt.Sprintf("row ended with %d fields, want %d", field+1, r.nFields))
			}
			fields = append(fields, truncate(cur))
			return fields, false, nil
		case b < 10:
			// Silently drop ASCII control bytes below 10 (read_sequence's
			// documented behavior), except tab and newline already handled.
		default:
			cur = append(cur, b)
		}
	}
}

func truncate(b []byte) []byte {
	if len(b) > MaxFieldLen-1 {
		return b[:MaxFieldLen-1]
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// ScanOffsets returns the byte offset of every sentence start in path,
// the table train() prescans once so epochs can reshuffle sentence order
// by seeking rather than rereading sequentially.
func ScanOffsets(path string, nFields int) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: opening %s: %w", path, err)
	}
	defer f.Close()

	var offsets []int64
	var pos int64
	// bufio.Reader buffers ahead of the true file position, so offsets are
	// tracked independently by subtracting what's still buffered from the
	// total bytes pulled from the underlying file.
	counting := &countingReader{r: f}
	r := &Reader{br: bufio.NewReader(counting), nFields: nFields}

	for {
		offsets = append(offsets, pos)
		_, err := r.Next()
		pos = counting.n - int64(r.br.Buffered())
		if err == io.EOF {
			offsets = offsets[:len(offsets)-1]
			break
		}
		if err != nil {
			return nil, err
		}
		if len(offsets) > MaxSentences {
			return nil, errs.New(errs.CodeOverflow, "sentence count exceeds maximum",
				fmt.Sprintf("max=%d", MaxSentences))
		}
	}
	return offsets, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Writer writes sentences back out in the same tab-separated format,
// inserting a predicted tag column at tagCol (the reinsertion behavior of
// tag()/run()'s output loop). A nil Writer models "evaluate" mode: no
// output is produced, only accuracy accounting.
type Writer struct {
	w      *bufio.Writer
	tagCol int
}

// NewWriter wraps w, inserting the tag string at column tagCol on each row
// written by WriteSentence.
func NewWriter(w io.Writer, tagCol int) *Writer {
	return &Writer{w: bufio.NewWriter(w), tagCol: tagCol}
}

// WriteSentence writes sent with tags[i] inserted at column w.tagCol of each
// row (appended when w.tagCol is at or past the row's last field), followed
// by a blank line. Every current caller passes a tagCol one past the last
// field, so the tag is written as an appended column.
func (w *Writer) WriteSentence(sent Sentence, tags []string) error {
	for i, row := range sent {
		for col, field := range row {
			if col == w.tagCol {
				if _, err := w.w.WriteString(tags[i]); err != nil {
					return err
				}
				if err := w.w.WriteByte('\t'); err != nil {
					return err
				}
			}
			if _, err := w.w.Write(field); err != nil {
				return err
			}
			if col != len(row)-1 {
				if err := w.w.WriteByte('\t'); err != nil {
					return err
				}
			}
		}
		if w.tagCol >= len(sent[i]) {
			if err := w.w.WriteByte('\t'); err != nil {
				return err
			}
			if _, err := w.w.WriteString(tags[i]); err != nil {
				return err
			}
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.WriteByte('\n')
}

// Flush flushes buffered output.
func (w *Writer) Flush() error { return w.w.Flush() }
