package worker

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// fileSplit is a line-aligned byte range [From, To) of one input file.
type fileSplit struct {
	FileName string
	From     int64
	To       int64
	input    int
}

// splitFile cuts a file into ranges of roughly size bytes. Every range
// except the last ends right after a newline, so no line spans two splits.
func splitFile(name string, size int64, input int) ([]fileSplit, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", name)
	}
	total := info.Size()
	if size <= 0 {
		size = total
	}

	var splits []fileSplit
	from := int64(0)
	for from < total {
		to := from + size
		if to >= total {
			to = total
		} else {
			next, err := nextLineStart(f, to)
			if err != nil {
				return nil, err
			}
			to = next
		}
		splits = append(splits, fileSplit{FileName: name, From: from, To: to, input: input})
		from = to
	}
	return splits, nil
}

// nextLineStart returns the offset just past the first newline at or after
// off, or the file size if there is none.
func nextLineStart(f *os.File, off int64) (int64, error) {
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	rd := bufio.NewReader(f)
	pos := off
	for {
		b, err := rd.ReadByte()
		if err == io.EOF {
			return pos, nil
		}
		if err != nil {
			return 0, err
		}
		pos++
		if b == '\n' {
			return pos, nil
		}
	}
}

func partialContent(fInfo fileSplit) (string, error) {
	f, err := os.Open(fInfo.FileName)
	if err != nil {
		return "", err
	}
	defer f.Close()

	size := fInfo.To - fInfo.From
	if size <= 0 {
		return "", nil
	}
	if _, err := f.Seek(fInfo.From, io.SeekStart); err != nil {
		return "", err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
