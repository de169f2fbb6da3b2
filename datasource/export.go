package datasource

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/segmentio/encoding/json"
)

// Line is a single line of an export. Either Key and Value or OCI is set.
type Line struct {
	Key   string  `json:"key,omitempty"`
	Value *Record `json:"value,omitempty"`
	OCI   string  `json:"oci,omitempty"`
}

// Stats counts the lines exported or imported.
type Stats struct {
	Records int
	Seen    int
}

// Export writes all records, then all seen citations, as JSON lines.
func Export(ctx context.Context, ds DataSource, w io.Writer) (Stats, error) {
	var (
		stats Stats
		bw    = bufio.NewWriter(w)
		enc   = json.NewEncoder(bw)
	)
	err := ds.Scan(ctx, func(key string, r Record) error {
		stats.Records++
		return enc.Encode(Line{Key: key, Value: &r})
	})
	if err != nil {
		return stats, err
	}
	err = ds.ScanSeen(ctx, func(oci string) error {
		stats.Seen++
		return enc.Encode(Line{OCI: oci})
	})
	if err != nil {
		return stats, err
	}
	return stats, bw.Flush()
}

// Import reads JSON lines as written by Export and stores them in batches.
func Import(ctx context.Context, ds DataSource, r io.Reader, batchSize int) (Stats, error) {
	if batchSize <= 0 {
		batchSize = 10000
	}
	var (
		stats Stats
		batch = make(map[string]Record)
		br    = bufio.NewReader(r)
		i     int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ds.MSet(ctx, batch); err != nil {
			return err
		}
		batch = make(map[string]Record)
		return nil
	}
	for {
		b, err := br.ReadBytes('\n')
		if err == io.EOF && len(b) == 0 {
			break
		}
		if err != nil && err != io.EOF {
			return stats, err
		}
		i++
		if len(b) == 0 || (len(b) == 1 && b[0] == '\n') {
			continue
		}
		var line Line
		if err := json.Unmarshal(b, &line); err != nil {
			return stats, fmt.Errorf("line %d: %w", i, err)
		}
		switch {
		case line.OCI != "":
			if _, err := ds.SetIfAbsent(ctx, line.OCI); err != nil {
				return stats, err
			}
			stats.Seen++
		case line.Key != "" && line.Value != nil:
			batch[line.Key] = *line.Value
			stats.Records++
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		default:
			return stats, fmt.Errorf("line %d: neither record nor oci", i)
		}
	}
	return stats, flush()
}
