package parser

import (
	lex "pesadb/query_parser/lexer"
)

func (p *Parser) parseInsert() (*InsertStmt, error) {
	if _, err := p.expect(lex.INTO, "expected INTO after INSERT"); err != nil {
		return nil, err
	}
	table, err := p.expect(lex.IDENT, "expected table name after INTO")
	if err != nil {
		return nil, err
	}
	stmt := &InsertStmt{Table: table.Value}

	if p.match(lex.LPAREN) {
		cols, err := p.parseIdentifierList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.RPAREN, "expected ')' after column list"); err != nil {
			return nil, err
		}
		stmt.Columns = cols
	}

	if _, err := p.expect(lex.VALUES, "expected VALUES"); err != nil {
		return nil, err
	}

	for {
		if _, err := p.expect(lex.LPAREN, "expected '(' before values"); err != nil {
			return nil, err
		}
		row, err := p.parseExpressionList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.RPAREN, "expected ')' after values"); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if !p.match(lex.COMMA) {
			return stmt, nil
		}
	}
}

func (p *Parser) parseExpressionList() ([]Expression, error) {
	var exprs []Expression
	if p.cur().Kind == lex.RPAREN {
		return exprs, nil
	}
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if !p.match(lex.COMMA) {
			return exprs, nil
		}
	}
}

func (p *Parser) parseUpdate() (*UpdateStmt, error) {
	table, err := p.expect(lex.IDENT, "expected table name after UPDATE")
	if err != nil {
		return nil, err
	}
	stmt := &UpdateStmt{Table: table.Value}

	if _, err := p.expect(lex.SET, "expected SET after table name"); err != nil {
		return nil, err
	}

	for {
		col, err := p.expect(lex.IDENT, "expected column name in SET")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.EQ, "expected '=' after column name"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, Assignment{Column: col.Value, Expr: expr})
		if !p.match(lex.COMMA) {
			break
		}
	}

	if p.match(lex.WHERE) {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (*DeleteStmt, error) {
	if _, err := p.expect(lex.FROM, "expected FROM after DELETE"); err != nil {
		return nil, err
	}
	table, err := p.expect(lex.IDENT, "expected table name after FROM")
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{Table: table.Value}

	if p.match(lex.WHERE) {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}
