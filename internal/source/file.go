package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// File reads a PMS export: either one JSON array of row objects or JSON
// Lines (one object per line). The format is detected from the first
// non-space byte. Path "-" reads stdin.
type File struct {
	Path string
}

// Describe returns the file path.
func (f *File) Describe() string {
	if f.Path == "-" {
		return "stdin"
	}
	return f.Path
}

// Load reads and coerces every row of the file.
func (f *File) Load(ctx context.Context) (*Batch, error) {
	var r io.Reader
	if f.Path == "-" {
		r = os.Stdin
	} else {
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot file: %w", err)
		}
		defer fh.Close()
		r = fh
	}
	return Decode(ctx, r)
}

// Decode parses a JSON array or JSON Lines stream from r.
func Decode(ctx context.Context, r io.Reader) (*Batch, error) {
	digest := xxhash.New()
	br := bufio.NewReaderSize(io.TeeReader(r, digest), 1<<20)

	first, err := firstNonSpace(br)
	if err == io.EOF {
		return &Batch{Hash: digest.Sum64()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot data: %w", err)
	}

	batch := &Batch{}
	if err := eachObject(ctx, br, first, func(raw json.RawMessage) bool {
		batch.add(raw)
		return true
	}); err != nil {
		return nil, err
	}
	// Drain so the fingerprint covers the whole input.
	if _, err := io.Copy(io.Discard, br); err != nil {
		return nil, fmt.Errorf("reading snapshot data: %w", err)
	}
	batch.Hash = digest.Sum64()
	return batch, nil
}

// eachObject calls visit for every element of the stream: array elements when
// first is '[', otherwise one JSON value per non-blank line. Iteration stops
// early when visit returns false.
func eachObject(ctx context.Context, r io.Reader, first byte, visit func(json.RawMessage) bool) error {
	if first == '[' {
		return decodeArray(ctx, r, visit)
	}
	return decodeLines(ctx, r, visit)
}

// decodeArray streams the elements of a top-level JSON array.
func decodeArray(ctx context.Context, r io.Reader, visit func(json.RawMessage) bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading array start: %w", err)
	}
	for n := 0; dec.More(); n++ {
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("row %d: invalid JSON: %w", n+1, err)
		}
		if !visit(raw) {
			return nil
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading array end: %w", err)
	}
	return nil
}

// decodeLines reads one JSON object per line. Blank lines are ignored; a line
// that is not valid JSON is still handed to visit, which decides its fate.
func decodeLines(ctx context.Context, r io.Reader, visit func(json.RawMessage) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for n := 0; scanner.Scan(); {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n++
		if !visit(json.RawMessage(line)) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// add coerces one raw element, recording it as a record or a skipped row.
func (b *Batch) add(raw json.RawMessage) {
	b.Rows++
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil || m == nil {
		b.Skipped++
		return
	}
	rec, err := fromMap(m).toRecord()
	if err != nil {
		b.Skipped++
		return
	}
	b.Records = append(b.Records, rec)
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		c, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return c, nil
	}
}
