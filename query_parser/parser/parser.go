package parser

import (
	"fmt"

	lex "pesadb/query_parser/lexer"
)

// Parser is a recursive-descent parser over a pre-lexed token slice.
type Parser struct {
	tokens []lex.Token
	pos    int
}

// Parse lexes and parses a single SQL statement. A trailing semicolon is
// allowed; anything after it is a syntax error.
func Parse(sql string) (Statement, error) {
	tokens := lex.New(sql).Tokenize()
	for _, tok := range tokens {
		if tok.Kind == lex.ERROR {
			return nil, fmt.Errorf("syntax error at %d:%d: %s", tok.Line, tok.Column, tok.Value)
		}
	}

	p := &Parser{tokens: tokens}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	p.match(lex.SEMICOLON)
	if p.cur().Kind != lex.END {
		return nil, p.errorf("unexpected input after statement")
	}
	return stmt, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch p.cur().Kind {
	case lex.SELECT:
		p.advance()
		return p.parseSelect()
	case lex.INSERT:
		p.advance()
		return p.parseInsert()
	case lex.UPDATE:
		p.advance()
		return p.parseUpdate()
	case lex.DELETE:
		p.advance()
		return p.parseDelete()
	case lex.CREATE:
		p.advance()
		return p.parseCreate()
	case lex.DROP:
		p.advance()
		return p.parseDrop()
	case lex.DESCRIBE:
		p.advance()
		return p.parseDescribe()
	case lex.SHOW:
		p.advance()
		return p.parseShow()
	case lex.USE:
		p.advance()
		return p.parseUse()
	}
	return nil, p.errorf("unexpected token %s", p.cur().Kind)
}

// --- token plumbing ---

func (p *Parser) cur() lex.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return lex.Token{Kind: lex.END}
}

func (p *Parser) advance() lex.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// match consumes the current token if it is one of the given kinds.
func (p *Parser) match(kinds ...lex.TokenKind) bool {
	for _, kind := range kinds {
		if p.cur().Kind == kind {
			p.advance()
			return true
		}
	}
	return false
}

// expect consumes and returns the current token, or fails with context.
func (p *Parser) expect(kind lex.TokenKind, context string) (lex.Token, error) {
	if p.cur().Kind != kind {
		return lex.Token{}, p.errorf("%s", context)
	}
	return p.advance(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	tok := p.cur()
	msg := fmt.Sprintf(format, args...)
	if tok.Kind == lex.END {
		return fmt.Errorf("%s, got end of input", msg)
	}
	return fmt.Errorf("%s, got %s (%q) at %d:%d", msg, tok.Kind, tok.Value, tok.Line, tok.Column)
}

// --- shared productions ---

// parseColumnRef parses name or alias.name.
func (p *Parser) parseColumnRef() (ColumnRef, error) {
	first, err := p.expect(lex.IDENT, "expected column name")
	if err != nil {
		return ColumnRef{}, err
	}
	if p.match(lex.DOT) {
		name, err := p.expect(lex.IDENT, "expected column name after '.'")
		if err != nil {
			return ColumnRef{}, err
		}
		return ColumnRef{Name: name.Value, TableAlias: first.Value}, nil
	}
	return ColumnRef{Name: first.Value}, nil
}

func (p *Parser) parseIdentifierList() ([]string, error) {
	var names []string
	for {
		tok, err := p.expect(lex.IDENT, "expected identifier")
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Value)
		if !p.match(lex.COMMA) {
			return names, nil
		}
	}
}
