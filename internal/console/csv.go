package console

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"mirage/internal/audit"
)

// The export quotes every field unconditionally and doubles embedded quotes,
// a stricter discipline than encoding/csv offers, so downstream tooling never
// has to guess which fields were quoted.
var csvHeader = []string{
	"id", "ts", "session_id", "ip", "user_agent",
	"method", "path", "action", "payload", "referer", "note",
}

type csvWriter struct {
	w *bufio.Writer
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: bufio.NewWriter(w)}
}

func (c *csvWriter) writeRow(fields []string) {
	for i, f := range fields {
		if i > 0 {
			c.w.WriteByte(',')
		}
		c.w.WriteByte('"')
		c.w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		c.w.WriteByte('"')
	}
	c.w.WriteString("\r\n")
}

func (c *csvWriter) flush() {
	_ = c.w.Flush()
}

func csvRecord(e audit.Event) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.TS.UTC().Format(time.RFC3339),
		e.SessionID,
		e.IP,
		e.UserAgent,
		e.Method,
		e.Path,
		e.Action,
		e.Payload,
		e.Referer,
		e.Note,
	}
}
