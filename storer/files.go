package storer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// highestSeq returns the highest sequence number of the files named
// <name>_<seq>.<ext> in dir, or 1.
func highestSeq(dir, name, ext string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(name)+"_*."+ext))
	if err != nil {
		return 0, err
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `_([0-9]+)\.` + regexp.QuoteMeta(ext) + `$`)
	seq := 1
	for _, m := range matches {
		sm := pattern.FindStringSubmatch(filepath.Base(m))
		if sm == nil {
			continue
		}
		if n, err := strconv.Atoi(sm[1]); err == nil && n > seq {
			seq = n
		}
	}
	return seq, nil
}

func globEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// countCitations counts the lines of a file for which counts is true. A
// missing file has no citations.
func countCitations(filename string, counts func([]byte) bool) (int, error) {
	f, err := os.Open(filename)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var (
		n  int
		br = bufio.NewReader(f)
	)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && counts(line) {
			n++
		}
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
	}
}

func isCSVCitation(line []byte) bool {
	return bytes.HasPrefix(line, []byte(`"0`)) || bytes.HasPrefix(line, []byte("0"))
}

func isRDFCitation(line []byte) bool {
	return bytes.Contains(line, []byte("<http://purl.org/spar/cito/Citation>"))
}

// isScholixCitation matches the lines starting a top level array element;
// links are written one per line.
func isScholixCitation(line []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(line, "[,"), []byte("{"))
}

func appendFile(filename string, b []byte) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// appendArray adds elements to a JSON array file, by replacing the closing
// bracket. The elements must be given with separators, but without
// brackets.
func appendArray(filename string, elements []byte) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	var buf bytes.Buffer
	if fi.Size() == 0 {
		buf.WriteString("[")
	} else {
		offset, err := closingBracket(f, fi.Size())
		if err != nil {
			f.Close()
			return fmt.Errorf("%s: %w", filename, err)
		}
		if err := f.Truncate(offset); err != nil {
			f.Close()
			return err
		}
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return err
		}
	}
	buf.Write(elements)
	buf.WriteString("]")
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var errNoArray = errors.New("no closing bracket")

// closingBracket returns the offset of the last "]" of a file, looking at
// the final bytes only.
func closingBracket(f *os.File, size int64) (int64, error) {
	n := int64(64)
	if size < n {
		n = size
	}
	tail := make([]byte, n)
	if _, err := f.ReadAt(tail, size-n); err != nil && err != io.EOF {
		return 0, err
	}
	i := bytes.LastIndexByte(tail, ']')
	if i < 0 {
		return 0, errNoArray
	}
	return size - n + int64(i), nil
}
