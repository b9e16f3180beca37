package sqlgen

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
)

const indentSize = 2

// printer writes SQL with indentation and collects bind arguments in the
// order their placeholders appear.
type printer struct {
	dialect     *dialect.Dialect
	output      *bytes.Buffer
	args        []any
	depth       int
	atLineStart bool
}

func newPrinter(d *dialect.Dialect) *printer {
	return &printer{
		dialect:     d,
		output:      &bytes.Buffer{},
		atLineStart: true,
	}
}

func (p *printer) String() string {
	return strings.TrimRight(p.output.String(), "\n")
}

func (p *printer) write(s string) {
	if p.atLineStart && len(s) > 0 && s[0] != '\n' {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

func (p *printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *printer) indent() {
	p.depth++
}

func (p *printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

// ident writes a quoted identifier.
func (p *printer) ident(name string) {
	p.write(p.dialect.QuoteIdentifier(name))
}

// bind appends v to the arguments and writes its placeholder.
func (p *printer) bind(v any) {
	p.args = append(p.args, v)
	p.write(p.dialect.FormatPlaceholder(len(p.args)))
}

// list prints count items separated by sep, one per line when multiline.
func (p *printer) list(count int, format func(i int), sep string, multiline bool) {
	for i := 0; i < count; i++ {
		format(i)
		if i < count-1 {
			p.write(sep)
			if multiline {
				p.writeln()
			}
		}
	}
}
