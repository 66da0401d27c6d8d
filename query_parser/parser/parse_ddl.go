package parser

import (
	"fmt"
	"strconv"
	"strings"

	lex "pesadb/query_parser/lexer"
	"pesadb/types"
)

func (p *Parser) parseCreate() (Statement, error) {
	switch {
	case p.match(lex.TABLE):
		return p.parseCreateTable()
	case p.match(lex.DATABASE):
		name, err := p.expect(lex.IDENT, "expected database name")
		if err != nil {
			return nil, err
		}
		return &CreateDatabaseStmt{DbName: name.Value}, nil
	}
	return nil, p.errorf("expected TABLE or DATABASE after CREATE")
}

func (p *Parser) parseCreateTable() (*CreateTableStmt, error) {
	stmt := &CreateTableStmt{}

	if p.match(lex.IF) {
		if _, err := p.expect(lex.NOT, "expected NOT after IF"); err != nil {
			return nil, err
		}
		if _, err := p.expect(lex.EXISTS, "expected EXISTS after NOT"); err != nil {
			return nil, err
		}
		stmt.IfNotExists = true
	}

	table, err := p.expect(lex.IDENT, "expected table name")
	if err != nil {
		return nil, err
	}
	stmt.Table = table.Value

	if _, err := p.expect(lex.LPAREN, "expected '(' after table name"); err != nil {
		return nil, err
	}

	for {
		if p.match(lex.FOREIGN) {
			fk, err := p.parseForeignKey()
			if err != nil {
				return nil, err
			}
			stmt.ForeignKeys = append(stmt.ForeignKeys, fk)
		} else {
			col, err := p.parseColumnDefinition()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
		if !p.match(lex.COMMA) {
			break
		}
	}

	if _, err := p.expect(lex.RPAREN, "expected ')' after column definitions"); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseForeignKey handles FOREIGN KEY (col) REFERENCES table(col); the
// FOREIGN keyword is already consumed.
func (p *Parser) parseForeignKey() (ForeignKeyDef, error) {
	var fk ForeignKeyDef
	if _, err := p.expect(lex.KEY, "expected KEY after FOREIGN"); err != nil {
		return fk, err
	}
	if _, err := p.expect(lex.LPAREN, "expected '(' after FOREIGN KEY"); err != nil {
		return fk, err
	}
	col, err := p.expect(lex.IDENT, "expected column name in FOREIGN KEY")
	if err != nil {
		return fk, err
	}
	if _, err := p.expect(lex.RPAREN, "expected ')' after FOREIGN KEY column"); err != nil {
		return fk, err
	}
	if _, err := p.expect(lex.REFERENCES, "expected REFERENCES"); err != nil {
		return fk, err
	}
	refTable, err := p.expect(lex.IDENT, "expected referenced table")
	if err != nil {
		return fk, err
	}
	if _, err := p.expect(lex.LPAREN, "expected '(' after referenced table"); err != nil {
		return fk, err
	}
	refCol, err := p.expect(lex.IDENT, "expected referenced column")
	if err != nil {
		return fk, err
	}
	if _, err := p.expect(lex.RPAREN, "expected ')' after referenced column"); err != nil {
		return fk, err
	}
	fk.Column = col.Value
	fk.RefTable = refTable.Value
	fk.RefColumn = refCol.Value
	return fk, nil
}

func (p *Parser) parseColumnDefinition() (ColumnDef, error) {
	var def ColumnDef

	name, err := p.expect(lex.IDENT, "expected column name")
	if err != nil {
		return def, err
	}
	def.Name = name.Value

	switch p.cur().Kind {
	case lex.INT, lex.INTEGER:
		p.advance()
		def.Type = "INT"
	case lex.STRING:
		p.advance()
		if p.match(lex.LPAREN) {
			length, err := p.expect(lex.NUMBER, "expected string length")
			if err != nil {
				return def, err
			}
			if _, err := p.expect(lex.RPAREN, "expected ')' after string length"); err != nil {
				return def, err
			}
			def.Type = fmt.Sprintf("STRING(%s)", length.Value)
		} else {
			def.Type = "STRING(255)"
		}
	case lex.FLOAT:
		p.advance()
		def.Type = "FLOAT"
	case lex.DOUBLE:
		p.advance()
		def.Type = "DOUBLE"
	case lex.BOOLEAN, lex.BOOL:
		p.advance()
		def.Type = "BOOLEAN"
	case lex.TIMESTAMP:
		p.advance()
		def.Type = "TIMESTAMP"
	default:
		return def, p.errorf("expected data type for column %q", def.Name)
	}

	for {
		switch {
		case p.match(lex.PRIMARY):
			if _, err := p.expect(lex.KEY, "expected KEY after PRIMARY"); err != nil {
				return def, err
			}
			def.Constraints = append(def.Constraints, "PRIMARY KEY")
		case p.match(lex.UNIQUE):
			def.Constraints = append(def.Constraints, "UNIQUE")
		case p.match(lex.NOT):
			if _, err := p.expect(lex.NULL_LITERAL, "expected NULL after NOT"); err != nil {
				return def, err
			}
			def.Constraints = append(def.Constraints, "NOT NULL")
		case p.match(lex.DEFAULT):
			val, err := p.parseDefaultLiteral()
			if err != nil {
				return def, err
			}
			def.Default = val
		default:
			return def, nil
		}
	}
}

// parseDefaultLiteral accepts a bare literal. DEFAULT NULL is the same as
// no default at all.
func (p *Parser) parseDefaultLiteral() (*types.Value, error) {
	tok := p.cur()
	switch tok.Kind {
	case lex.NUMBER:
		p.advance()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", tok.Value)
		}
		v := types.NewInteger(n)
		return &v, nil
	case lex.FLOAT_LITERAL:
		p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal %q", tok.Value)
		}
		v := types.NewDouble(f)
		return &v, nil
	case lex.STRING_LITERAL:
		p.advance()
		v := types.NewString(tok.Value)
		return &v, nil
	case lex.BOOLEAN_LITERAL:
		p.advance()
		v := types.NewBoolean(strings.EqualFold(tok.Value, "true"))
		return &v, nil
	case lex.NULL_LITERAL:
		p.advance()
		return nil, nil
	}
	return nil, p.errorf("expected literal after DEFAULT")
}

func (p *Parser) parseDrop() (*DropTableStmt, error) {
	if _, err := p.expect(lex.TABLE, "expected TABLE after DROP"); err != nil {
		return nil, err
	}
	stmt := &DropTableStmt{}
	if p.match(lex.IF) {
		if _, err := p.expect(lex.EXISTS, "expected EXISTS after IF"); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}
	table, err := p.expect(lex.IDENT, "expected table name")
	if err != nil {
		return nil, err
	}
	stmt.Table = table.Value
	return stmt, nil
}

func (p *Parser) parseDescribe() (*DescribeStmt, error) {
	table, err := p.expect(lex.IDENT, "expected table name after DESCRIBE")
	if err != nil {
		return nil, err
	}
	return &DescribeStmt{Table: table.Value}, nil
}

func (p *Parser) parseShow() (Statement, error) {
	switch {
	case p.match(lex.TABLES):
		return &ShowTablesStmt{}, nil
	case p.match(lex.DATABASES):
		return &ShowDatabasesStmt{}, nil
	}
	return nil, p.errorf("expected TABLES or DATABASES after SHOW")
}

func (p *Parser) parseUse() (*UseDatabaseStmt, error) {
	name, err := p.expect(lex.IDENT, "expected database name after USE")
	if err != nil {
		return nil, err
	}
	return &UseDatabaseStmt{DbName: name.Value}, nil
}
