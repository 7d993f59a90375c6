// SPDX-License-Identifier: Apache-2.0

// Package trace reads, writes, generates and replays allocation traces.
//
// A trace file starts with four integers, one per line: the suggested heap
// size, the number of distinct block ids, the number of operations and a
// weight. Each following line is one operation:
//
//	a <id> <bytes>   allocate
//	r <id> <bytes>   reallocate
//	f <id>           free
//
// Blank lines and text after '#' are ignored.
package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the operation a trace line performs.
type Kind byte

const (
	Alloc   Kind = 'a'
	Realloc Kind = 'r'
	Free    Kind = 'f'
)

func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Realloc:
		return "realloc"
	case Free:
		return "free"
	}
	return fmt.Sprintf("Kind(%q)", byte(k))
}

// Op is one trace operation. Size is unused for Free.
type Op struct {
	Kind Kind
	ID   int
	Size int
}

// Trace is a parsed trace file.
type Trace struct {
	HeapSize int
	IDs      int
	Weight   int
	Ops      []Op
}

// ParseError reports a malformed trace line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace: line %d: %s", e.Line, e.Msg)
}

// ErrOpCount is wrapped when the number of operations differs from the header.
var ErrOpCount = errors.New("trace: operation count mismatch")

// Parse reads a trace.
func Parse(r io.Reader) (*Trace, error) {
	var (
		tr     Trace
		header []int
		want   int
		lineNo int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if len(header) < 4 {
			if len(fields) != 1 {
				return nil, &ParseError{Line: lineNo, Msg: "expected a single header value"}
			}
			v, err := strconv.Atoi(fields[0])
			if err != nil || v < 0 {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("bad header value %q", fields[0])}
			}
			header = append(header, v)
			if len(header) == 4 {
				tr.HeapSize, tr.IDs, want, tr.Weight = header[0], header[1], header[2], header[3]
				tr.Ops = make([]Op, 0, want)
			}
			continue
		}

		op, err := parseOp(fields, tr.IDs)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: err.Error()}
		}
		tr.Ops = append(tr.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: read: %w", err)
	}
	if len(header) < 4 {
		return nil, &ParseError{Line: lineNo, Msg: "truncated header"}
	}
	if len(tr.Ops) != want {
		return nil, fmt.Errorf("%w: header says %d, found %d", ErrOpCount, want, len(tr.Ops))
	}
	return &tr, nil
}

func parseOp(fields []string, ids int) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("unknown operation %q", fields[0])
	}
	op := Op{Kind: Kind(fields[0][0])}
	want := 3
	switch op.Kind {
	case Alloc, Realloc:
	case Free:
		want = 2
	default:
		return Op{}, fmt.Errorf("unknown operation %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%s takes %d arguments, got %d", op.Kind, want-1, len(fields)-1)
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= ids {
		return Op{}, fmt.Errorf("bad id %q", fields[1])
	}
	op.ID = id
	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("bad size %q", fields[2])
		}
		op.Size = size
	}
	return op, nil
}

// WriteTo writes the trace in the format Parse reads.
func (tr *Trace) WriteTo(w io.Writer) (int64, error) {
	var bw bytes.Buffer
	fmt.Fprintf(&bw, "%d\n%d\n%d\n%d\n", tr.HeapSize, tr.IDs, len(tr.Ops), tr.Weight)
	for _, op := range tr.Ops {
		if op.Kind == Free {
			fmt.Fprintf(&bw, "%c %d\n", op.Kind, op.ID)
		} else {
			fmt.Fprintf(&bw, "%c %d %d\n", op.Kind, op.ID, op.Size)
		}
	}
	return bw.WriteTo(w)
}
