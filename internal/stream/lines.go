package stream

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

// AlertMarker flags a diagnostic line as an operator alert
const AlertMarker = "Moisture reading"

// Echo-mode delimiters: the firmware prints a lone "J", the JSON document
// line by line, then a lone "X".
const (
	blockStart = "J"
	blockEnd   = "X"
)

// lineClassifier splits the stream into lines and sorts them into plain
// lines and J...X JSON blocks. File-transfer frames are skipped; the frame
// extractor owns them.
type lineClassifier struct {
	// maxPending bounds an unterminated line and a JSON block, in bytes.
	// Zero means unbounded.
	maxPending int

	partial    string
	discarding bool // dropping the rest of an overlong line
	collecting bool
	block      strings.Builder
}

type lineSink interface {
	line(Line)
	jsonBlock(JSONBlock)
}

func (c *lineClassifier) feed(fragment string, out lineSink) {
	c.partial += fragment
	for {
		i := strings.IndexAny(c.partial, "\r\n")
		if i < 0 {
			break
		}
		raw := c.partial[:i]
		c.partial = c.partial[i+1:]
		if c.discarding {
			c.discarding = false
			continue
		}
		c.process(raw, out)
	}

	if c.maxPending > 0 && len(c.partial) > c.maxPending {
		if !c.discarding {
			logging.Warn("Unterminated line exceeded buffer, discarding it",
				zap.Int("limit", c.maxPending),
				zap.Int("pending", len(c.partial)),
			)
		}
		c.partial = ""
		c.discarding = true
	}
}

// flush treats any unterminated remainder as a final line
func (c *lineClassifier) flush(out lineSink) bool {
	if c.partial != "" && !c.discarding {
		c.process(c.partial, out)
	}
	c.partial = ""
	c.discarding = false
	abandoned := c.collecting
	c.collecting = false
	c.block.Reset()
	return abandoned
}

func (c *lineClassifier) process(raw string, out lineSink) {
	text := strings.TrimSpace(raw)
	if text == "" || strings.HasPrefix(text, "FT,") {
		return
	}

	switch {
	case text == blockStart:
		c.collecting = true
		c.block.Reset()
	case text == blockEnd && c.collecting:
		body := c.block.String()
		c.collecting = false
		c.block.Reset()
		out.jsonBlock(JSONBlock{Text: body, Valid: jsoniter.Valid([]byte(body))})
	case text == blockEnd:
		// stray end marker outside a block
	case c.collecting:
		if c.maxPending > 0 && c.block.Len()+len(text) > c.maxPending {
			logging.Warn("JSON block exceeded buffer, discarding it", zap.Int("limit", c.maxPending))
			c.collecting = false
			c.block.Reset()
			return
		}
		c.block.WriteString(text)
	default:
		out.line(Line{Text: text, Alert: strings.Contains(text, AlertMarker)})
	}
}
