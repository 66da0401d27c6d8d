package parser

import (
	"strconv"
	"strings"

	lex "pesadb/query_parser/lexer"
	"pesadb/types"
)

// Expression grammar, lowest precedence first:
//
//	expression -> or
//	or         -> and (OR and)*
//	and        -> comparison (AND comparison)*
//	comparison -> term ((= != < > <= >=) term)*
//	term       -> factor ((+ -) factor)*
//	factor     -> unary ((* /) unary)*
//	unary      -> (NOT + -) unary | primary
//	primary    -> literal | '(' expression ')' | column
func (p *Parser) parseExpression() (Expression, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expression, error) {
	expr, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(lex.OR) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Left: expr, Operator: "OR", Right: right}
	}
	return expr, nil
}

func (p *Parser) parseAnd() (Expression, error) {
	expr, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.match(lex.AND) {
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Left: expr, Operator: "AND", Right: right}
	}
	return expr, nil
}

var comparisonOps = map[lex.TokenKind]string{
	lex.EQ:  "=",
	lex.NEQ: "!=",
	lex.LT:  "<",
	lex.GT:  ">",
	lex.LTE: "<=",
	lex.GTE: ">=",
}

func (p *Parser) parseComparison() (Expression, error) {
	expr, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.cur().Kind]
		if !ok {
			return expr, nil
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Left: expr, Operator: op, Right: right}
	}
}

func (p *Parser) parseTerm() (Expression, error) {
	expr, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lex.PLUS || p.cur().Kind == lex.MINUS {
		op := p.advance().Value
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseFactor() (Expression, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lex.STAR || p.cur().Kind == lex.SLASH {
		op := p.advance().Value
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Left: expr, Operator: op, Right: right}
	}
	return expr, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	switch p.cur().Kind {
	case lex.NOT:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: "NOT", Operand: operand}, nil
	case lex.PLUS, lex.MINUS:
		op := p.advance().Value
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: op, Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	switch p.cur().Kind {
	case lex.NUMBER:
		tok := p.advance()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", tok.Value)
		}
		return &LiteralExpr{Value: types.NewInteger(n)}, nil

	case lex.FLOAT_LITERAL:
		tok := p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal %q", tok.Value)
		}
		return &LiteralExpr{Value: types.NewDouble(f)}, nil

	case lex.STRING_LITERAL:
		tok := p.advance()
		return &LiteralExpr{Value: types.NewString(tok.Value)}, nil

	case lex.BOOLEAN_LITERAL:
		tok := p.advance()
		return &LiteralExpr{Value: types.NewBoolean(strings.EqualFold(tok.Value, "true"))}, nil

	case lex.NULL_LITERAL:
		p.advance()
		return &LiteralExpr{Value: types.NewNull()}, nil

	case lex.LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.RPAREN, "expected ')' after expression"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	col, err := p.parseColumnRef()
	if err != nil {
		return nil, err
	}
	return &ColumnExpr{Column: col}, nil
}
