package parser

// Cursor walks an ordered slice of text lines with bounded look-ahead. The
// listing grammar needs variable skips (one line for a complete parcel id,
// two for a split one, a whole look-ahead window for record data), so the
// cursor exposes those moves explicitly instead of raw index arithmetic.
type Cursor struct {
	lines []string
	pos   int
}

func NewCursor(lines []string) *Cursor {
	return &Cursor{lines: lines}
}

// Peek returns the line n positions ahead of the cursor without moving it.
// Peek(0) is the current line.
func (c *Cursor) Peek(n int) (string, bool) {
	i := c.pos + n
	if i < 0 || i >= len(c.lines) {
		return "", false
	}
	return c.lines[i], true
}

// Advance moves the cursor forward n positions, clamping at the end.
func (c *Cursor) Advance(n int) {
	c.pos += n
	if c.pos > len(c.lines) {
		c.pos = len(c.lines)
	}
}

// Done reports whether the cursor has consumed all lines.
func (c *Cursor) Done() bool {
	return c.pos >= len(c.lines)
}

// Pos returns the current absolute position.
func (c *Cursor) Pos() int {
	return c.pos
}

// ConsumeUntil collects lines starting at the cursor until stop returns true
// for the upcoming line or max lines have been taken, advancing past each
// collected line. The stopping line itself is not consumed.
func (c *Cursor) ConsumeUntil(stop func(c *Cursor) bool, max int) []string {
	var out []string
	for len(out) < max && !c.Done() {
		if stop(c) {
			break
		}
		line, _ := c.Peek(0)
		out = append(out, line)
		c.Advance(1)
	}
	return out
}
