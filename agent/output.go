package agent

import "strings"

// MaxOutputBytes caps the captured output of one agent run
const MaxOutputBytes = 1024 * 1024

const truncationNote = "\n[output truncated]\n"

// outputBuffer keeps the first limit bytes of the lines written to it
type outputBuffer struct {
	b         strings.Builder
	limit     int
	truncated bool
}

func newOutputBuffer(limit int) *outputBuffer {
	if limit <= 0 {
		limit = MaxOutputBytes
	}
	return &outputBuffer{limit: limit}
}

func (o *outputBuffer) WriteLine(line string) {
	if o.truncated {
		return
	}
	if o.b.Len()+len(line)+1 > o.limit {
		o.truncated = true
		return
	}
	o.b.WriteString(line)
	o.b.WriteByte('\n')
}

func (o *outputBuffer) String() string {
	if o.truncated {
		return o.b.String() + truncationNote
	}
	return o.b.String()
}
