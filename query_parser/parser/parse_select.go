package parser

import (
	lex "pesadb/query_parser/lexer"
	"strconv"
)

func (p *Parser) parseSelect() (*SelectStmt, error) {
	stmt := &SelectStmt{Limit: -1, Offset: -1}

	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	stmt.Columns = cols

	if _, err := p.expect(lex.FROM, "expected FROM after column list"); err != nil {
		return nil, err
	}
	table, err := p.expect(lex.IDENT, "expected table name after FROM")
	if err != nil {
		return nil, err
	}
	stmt.Table = table.Value

	// Optional table alias: FROM users u
	if p.cur().Kind == lex.IDENT {
		stmt.TableAlias = p.advance().Value
	}

	joins, err := p.parseJoinClauses()
	if err != nil {
		return nil, err
	}
	stmt.Joins = joins

	if p.match(lex.WHERE) {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.match(lex.ORDER) {
		if _, err := p.expect(lex.BY, "expected BY after ORDER"); err != nil {
			return nil, err
		}
		orderBy, err := p.parseOrderBy()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = orderBy
	}

	if p.match(lex.LIMIT) {
		n, err := p.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = n
	}

	if p.match(lex.OFFSET) {
		n, err := p.parseCount("OFFSET")
		if err != nil {
			return nil, err
		}
		stmt.Offset = n
	}

	return stmt, nil
}

func (p *Parser) parseColumnList() ([]ColumnRef, error) {
	if p.match(lex.STAR) {
		return []ColumnRef{{Name: "*"}}, nil
	}

	var cols []ColumnRef
	for {
		col, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if !p.match(lex.COMMA) {
			return cols, nil
		}
	}
}

func (p *Parser) parseJoinClauses() ([]JoinClause, error) {
	var joins []JoinClause

	for {
		var joinType JoinType
		switch {
		case p.match(lex.JOIN):
			joinType = JoinInner
		case p.match(lex.INNER):
			if _, err := p.expect(lex.JOIN, "expected JOIN after INNER"); err != nil {
				return nil, err
			}
			joinType = JoinInner
		case p.match(lex.LEFT):
			p.match(lex.OUTER)
			if _, err := p.expect(lex.JOIN, "expected JOIN after LEFT"); err != nil {
				return nil, err
			}
			joinType = JoinLeft
		case p.match(lex.RIGHT):
			p.match(lex.OUTER)
			if _, err := p.expect(lex.JOIN, "expected JOIN after RIGHT"); err != nil {
				return nil, err
			}
			joinType = JoinRight
		case p.match(lex.FULL):
			p.match(lex.OUTER)
			if _, err := p.expect(lex.JOIN, "expected JOIN after FULL"); err != nil {
				return nil, err
			}
			joinType = JoinFull
		default:
			return joins, nil
		}

		table, err := p.expect(lex.IDENT, "expected table name after JOIN")
		if err != nil {
			return nil, err
		}

		var alias string
		if p.cur().Kind == lex.IDENT {
			alias = p.advance().Value
		}

		if _, err := p.expect(lex.ON, "expected ON after join table"); err != nil {
			return nil, err
		}
		on, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		joins = append(joins, JoinClause{
			Table: table.Value,
			Type:  joinType,
			On:    on,
			Alias: alias,
		})
	}
}

func (p *Parser) parseOrderBy() ([]OrderByClause, error) {
	var clauses []OrderByClause
	for {
		col, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		ascending := true
		if p.match(lex.DESC) {
			ascending = false
		} else {
			p.match(lex.ASC)
		}
		clauses = append(clauses, OrderByClause{Column: col, Ascending: ascending})
		if !p.match(lex.COMMA) {
			return clauses, nil
		}
	}
}

func (p *Parser) parseCount(clause string) (int, error) {
	tok, err := p.expect(lex.NUMBER, "expected number after "+clause)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok.Value)
	if err != nil || n < 0 {
		return 0, p.errorf("invalid %s count %q", clause, tok.Value)
	}
	return n, nil
}
