package step

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotExchangeFile = errors.New("not an ISO-10303-21 exchange structure")
	ErrSyntax          = errors.New("step syntax error")
)

// Kind tells which field of a Value is meaningful.
type Kind int

const (
	KindNull    Kind = iota // $
	KindDerived             // *
	KindRef
	KindNumber
	KindString
	KindEnum
	KindBinary
	KindList
	KindTyped
)

// Value is one parameter of an entity record.
type Value struct {
	Kind  Kind
	Ref   int
	Num   float64
	Str   string // string, enumeration or binary text
	List  []Value
	Typed *Record
}

// Record is a keyword followed by its parameters, e.g. CARTESIAN_POINT('origin',(0.,0.,0.)).
type Record struct {
	Type   string
	Params []Value
}

// Instance is one #id=... line of the DATA section. Complex instances carry
// several records.
type Instance struct {
	ID      int
	Records []Record
}

// Simple returns the record of a single-record instance.
func (i *Instance) Simple() (Record, bool) {
	if len(i.Records) != 1 {
		return Record{}, false
	}
	return i.Records[0], true
}

// File is a parsed exchange structure.
type File struct {
	Header    []Record
	Instances map[int]*Instance
}

const (
	// maxNesting bounds parenthesised parameter lists and typed parameters.
	maxNesting = 64
	// ctxCheckEvery is how many DATA instances are read between context checks.
	ctxCheckEvery = 1024
)

type parser struct {
	lex   *lexer
	tok   token
	depth int
}

// Parse reads an ISO-10303-21 exchange structure.
func Parse(src []byte) (*File, error) {
	return ParseContext(context.Background(), src)
}

// ParseContext is Parse with cancellation checked while reading the DATA
// section.
func ParseContext(ctx context.Context, src []byte) (*File, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotExchangeFile, err)
	}

	if p.tok.kind != tokKeyword || p.tok.text != "ISO-10303-21" {
		return nil, ErrNotExchangeFile
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}

	f := &File{Instances: make(map[int]*Instance)}

	if err := p.expectKeyword("HEADER"); err != nil {
		return nil, err
	}
	if err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}
	for !p.atKeyword("ENDSEC") {
		rec, err := p.record()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokSemicolon); err != nil {
			return nil, err
		}
		f.Header = append(f.Header, rec)
	}
	if err := p.endSection(); err != nil {
		return nil, err
	}

	sections := 0
	for p.atKeyword("DATA") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		// Edition 3 allows DATA('name',('schema'));
		if p.tok.kind == tokLParen {
			if _, err := p.list(); err != nil {
				return nil, err
			}
		}
		if err := p.expect(tokSemicolon); err != nil {
			return nil, err
		}
		for n := 0; !p.atKeyword("ENDSEC"); n++ {
			if n%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			inst, err := p.instance()
			if err != nil {
				return nil, err
			}
			if _, dup := f.Instances[inst.ID]; dup {
				return nil, fmt.Errorf("%w: line %d: duplicate instance #%d", ErrSyntax, p.tok.line, inst.ID)
			}
			f.Instances[inst.ID] = inst
		}
		if err := p.endSection(); err != nil {
			return nil, err
		}
		sections++
	}
	if sections == 0 {
		return nil, p.errorf("missing DATA section")
	}

	if err := p.expectKeyword("END-ISO-10303-21"); err != nil {
		return nil, err
	}
	if err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}

	return f, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(kind tokenKind) error {
	if p.tok.kind != kind {
		if p.tok.kind == tokEOF {
			return p.errorf("unexpected end of file")
		}
		return p.errorf("unexpected %q", p.tok.text)
	}
	return p.advance()
}

func (p *parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return p.errorf("expected %s, got %q", kw, p.tok.text)
	}
	return p.advance()
}

func (p *parser) atKeyword(kw string) bool {
	return p.tok.kind == tokKeyword && p.tok.text == kw
}

func (p *parser) endSection() error {
	if err := p.expectKeyword("ENDSEC"); err != nil {
		return err
	}
	return p.expect(tokSemicolon)
}

func (p *parser) instance() (*Instance, error) {
	if p.tok.kind != tokRef {
		if p.tok.kind == tokEOF {
			return nil, p.errorf("unexpected end of file in DATA section")
		}
		return nil, p.errorf("expected entity instance, got %q", p.tok.text)
	}
	inst := &Instance{ID: p.tok.ref}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expect(tokEquals); err != nil {
		return nil, err
	}

	if p.tok.kind == tokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for p.tok.kind != tokRParen {
			rec, err := p.record()
			if err != nil {
				return nil, err
			}
			inst.Records = append(inst.Records, rec)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if len(inst.Records) == 0 {
			return nil, p.errorf("empty complex instance #%d", inst.ID)
		}
	} else {
		rec, err := p.record()
		if err != nil {
			return nil, err
		}
		inst.Records = []Record{rec}
	}

	if err := p.expect(tokSemicolon); err != nil {
		return nil, err
	}
	return inst, nil
}

func (p *parser) record() (Record, error) {
	if p.tok.kind != tokKeyword {
		return Record{}, p.errorf("expected entity name, got %q", p.tok.text)
	}
	rec := Record{Type: p.tok.text}
	if err := p.advance(); err != nil {
		return Record{}, err
	}
	params, err := p.list()
	if err != nil {
		return Record{}, err
	}
	rec.Params = params
	return rec, nil
}

// list parses '(' [param {',' param}] ')'.
func (p *parser) list() ([]Value, error) {
	if p.depth >= maxNesting {
		return nil, p.errorf("parameters nested deeper than %d", maxNesting)
	}
	p.depth++
	defer func() { p.depth-- }()

	if err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	values := []Value{}
	if p.tok.kind == tokRParen {
		return values, p.advance()
	}
	for {
		v, err := p.param()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		switch p.tok.kind {
		case tokComma:
			if err := p.advance(); err != nil {
				return nil, err
			}
		case tokRParen:
			return values, p.advance()
		default:
			return nil, p.errorf("unexpected %q in parameter list", p.tok.text)
		}
	}
}

func (p *parser) param() (Value, error) {
	t := p.tok
	switch t.kind {
	case tokDollar:
		return Value{Kind: KindNull}, p.advance()
	case tokStar:
		return Value{Kind: KindDerived}, p.advance()
	case tokRef:
		return Value{Kind: KindRef, Ref: t.ref}, p.advance()
	case tokNumber:
		return Value{Kind: KindNumber, Num: t.num}, p.advance()
	case tokString:
		return Value{Kind: KindString, Str: t.text}, p.advance()
	case tokEnum:
		return Value{Kind: KindEnum, Str: t.text}, p.advance()
	case tokBinary:
		return Value{Kind: KindBinary, Str: t.text}, p.advance()
	case tokLParen:
		items, err := p.list()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindList, List: items}, nil
	case tokKeyword:
		rec, err := p.record()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindTyped, Typed: &rec}, nil
	case tokEOF:
		return Value{}, p.errorf("unexpected end of file")
	}
	return Value{}, p.errorf("unexpected %q", t.text)
}
