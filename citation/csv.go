package citation

import (
	"io"
	"strconv"
	"strings"
)

var (
	// DataHeader is the header of citation data CSV files.
	DataHeader = []string{"oci", "citing", "cited", "creation", "timespan", "journal_sc", "author_sc"}
	// ProvHeader is the header of citation provenance CSV files.
	ProvHeader = []string{"oci", "snapshot", "agent", "source", "created", "invalidated", "description", "update"}
)

// DataRecord returns the CSV data fields, in DataHeader order.
func (c *Citation) DataRecord() []string {
	return []string{
		c.Body(),
		c.CitingID(),
		c.CitedID(),
		c.Creation,
		c.Duration,
		YesNo(c.JournalSC),
		YesNo(c.AuthorSC),
	}
}

// ProvRecord returns the CSV provenance fields, in ProvHeader order.
func (c *Citation) ProvRecord() []string {
	return []string{
		c.Body(),
		strconv.Itoa(c.ProvEntity),
		c.ProvAgent,
		c.Source,
		c.ProvDate,
		c.ProvInvalidated,
		c.ProvDescription,
		c.ProvUpdate,
	}
}

// FormatCSVLine renders fields as one CSV line with every field quoted and
// a trailing newline.
func FormatCSVLine(fields []string) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
	return sb.String()
}

// WriteCSV writes the data row of each citation, preceded by a header if
// header is true.
func WriteCSV(w io.Writer, citations []*Citation, header bool) error {
	return writeCSV(w, citations, header, DataHeader, (*Citation).DataRecord)
}

// WriteProvCSV is like WriteCSV for provenance rows.
func WriteProvCSV(w io.Writer, citations []*Citation, header bool) error {
	return writeCSV(w, citations, header, ProvHeader, (*Citation).ProvRecord)
}

func writeCSV(w io.Writer, citations []*Citation, header bool, h []string, record func(*Citation) []string) error {
	var sb strings.Builder
	if header {
		sb.WriteString(FormatCSVLine(h))
	}
	for _, c := range citations {
		sb.WriteString(FormatCSVLine(record(c)))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
