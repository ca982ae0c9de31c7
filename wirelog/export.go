package wirelog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/c360/swarmpulse/errors"
)

// ExportLines serializes every entry as one compact JSON object per line, in
// storage order, without a trailing newline.
func (s *Store) ExportLines() []byte {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail; marshal errors are skipped per entry
	_ = s.WriteLines(&buf)
	return buf.Bytes()
}

// WriteLines streams the JSON-Lines export to w.
func (s *Store) WriteLines(w io.Writer) error {
	bw := bufio.NewWriter(w)
	wrote := false
	for _, entry := range s.ring.Items() {
		line, err := json.Marshal(entry)
		if err != nil {
			s.logger.Warn("Skipping unserializable wire log entry", "id", entry.ID, "error", err)
			continue
		}
		if wrote {
			if err := bw.WriteByte('\n'); err != nil {
				return errors.WrapTransient(err, "Store", "WriteLines", "write separator")
			}
		}
		if _, err := bw.Write(line); err != nil {
			return errors.WrapTransient(err, "Store", "WriteLines", "write entry")
		}
		wrote = true
	}
	if err := bw.Flush(); err != nil {
		return errors.WrapTransient(err, "Store", "WriteLines", "flush")
	}
	return nil
}

// WriteGzip writes the JSON-Lines export gzip-compressed.
func (s *Store) WriteGzip(w io.Writer) error {
	zw := gzip.NewWriter(w)
	if err := s.WriteLines(zw); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return errors.WrapTransient(err, "Store", "WriteGzip", "close gzip stream")
	}
	return nil
}

// ParseLines decodes a JSON-Lines export back into entries.
func ParseLines(data []byte) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), int(DefaultMaxBytes)+1)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, errors.WrapInvalid(err, "wirelog", "ParseLines", "decode entry")
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapInvalid(err, "wirelog", "ParseLines", "scan lines")
	}
	return entries, nil
}
