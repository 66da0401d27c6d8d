package lex

type TokenKind int

const (
	// identifier
	IDENT TokenKind = iota

	// keywords
	SELECT
	INSERT
	INTO
	VALUES
	UPDATE
	SET
	DELETE
	FROM
	WHERE
	JOIN
	ON
	INNER
	LEFT
	RIGHT
	FULL
	OUTER
	CREATE
	TABLE
	TABLES
	DROP
	DESCRIBE
	SHOW
	DATABASE
	DATABASES
	USE
	PRIMARY
	KEY
	UNIQUE
	NOT
	AND
	OR
	ORDER
	BY
	LIMIT
	OFFSET
	DEFAULT
	FOREIGN
	REFERENCES
	IF
	EXISTS
	ASC
	DESC

	// type names
	INT
	INTEGER
	STRING
	FLOAT
	DOUBLE
	BOOLEAN
	BOOL
	TIMESTAMP

	// literals
	STRING_LITERAL
	NUMBER
	FLOAT_LITERAL
	BOOLEAN_LITERAL
	NULL_LITERAL

	// operators
	EQ
	NEQ
	LT
	GT
	LTE
	GTE
	PLUS
	MINUS
	STAR
	SLASH

	// punctuation
	COMMA
	SEMICOLON
	LPAREN
	RPAREN
	DOT

	END
	ERROR
)

// Token carries the kind, the raw value (with quotes stripped for string
// literals), and the 1-based source position where the token started.
type Token struct {
	Kind   TokenKind
	Value  string
	Line   int
	Column int
}

var kindNames = map[TokenKind]string{
	IDENT:           "IDENT",
	SELECT:          "SELECT",
	INSERT:          "INSERT",
	INTO:            "INTO",
	VALUES:          "VALUES",
	UPDATE:          "UPDATE",
	SET:             "SET",
	DELETE:          "DELETE",
	FROM:            "FROM",
	WHERE:           "WHERE",
	JOIN:            "JOIN",
	ON:              "ON",
	INNER:           "INNER",
	LEFT:            "LEFT",
	RIGHT:           "RIGHT",
	FULL:            "FULL",
	OUTER:           "OUTER",
	CREATE:          "CREATE",
	TABLE:           "TABLE",
	TABLES:          "TABLES",
	DROP:            "DROP",
	DESCRIBE:        "DESCRIBE",
	SHOW:            "SHOW",
	DATABASE:        "DATABASE",
	DATABASES:       "DATABASES",
	USE:             "USE",
	PRIMARY:         "PRIMARY",
	KEY:             "KEY",
	UNIQUE:          "UNIQUE",
	NOT:             "NOT",
	AND:             "AND",
	OR:              "OR",
	ORDER:           "ORDER",
	BY:              "BY",
	LIMIT:           "LIMIT",
	OFFSET:          "OFFSET",
	DEFAULT:         "DEFAULT",
	FOREIGN:         "FOREIGN",
	REFERENCES:      "REFERENCES",
	IF:              "IF",
	EXISTS:          "EXISTS",
	ASC:             "ASC",
	DESC:            "DESC",
	INT:             "INT",
	INTEGER:         "INTEGER",
	STRING:          "STRING",
	FLOAT:           "FLOAT",
	DOUBLE:          "DOUBLE",
	BOOLEAN:         "BOOLEAN",
	BOOL:            "BOOL",
	TIMESTAMP:       "TIMESTAMP",
	STRING_LITERAL:  "STRING_LITERAL",
	NUMBER:          "NUMBER",
	FLOAT_LITERAL:   "FLOAT_LITERAL",
	BOOLEAN_LITERAL: "BOOLEAN_LITERAL",
	NULL_LITERAL:    "NULL_LITERAL",
	EQ:              "EQ",
	NEQ:             "NEQ",
	LT:              "LT",
	GT:              "GT",
	LTE:             "LTE",
	GTE:             "GTE",
	PLUS:            "PLUS",
	MINUS:           "MINUS",
	STAR:            "STAR",
	SLASH:           "SLASH",
	COMMA:           "COMMA",
	SEMICOLON:       "SEMICOLON",
	LPAREN:          "LPAREN",
	RPAREN:          "RPAREN",
	DOT:             "DOT",
	END:             "END",
	ERROR:           "ERROR",
}

func (tk TokenKind) String() string {
	if name, ok := kindNames[tk]; ok {
		return name
	}
	return "UNKNOWN"
}

// keywords maps upper-cased words to their token kinds. Anything not in
// here lexes as IDENT, except TRUE/FALSE/NULL which are literals.
var keywords = map[string]TokenKind{
	"SELECT":     SELECT,
	"INSERT":     INSERT,
	"INTO":       INTO,
	"VALUES":     VALUES,
	"UPDATE":     UPDATE,
	"SET":        SET,
	"DELETE":     DELETE,
	"FROM":       FROM,
	"WHERE":      WHERE,
	"JOIN":       JOIN,
	"ON":         ON,
	"INNER":      INNER,
	"LEFT":       LEFT,
	"RIGHT":      RIGHT,
	"FULL":       FULL,
	"OUTER":      OUTER,
	"CREATE":     CREATE,
	"TABLE":      TABLE,
	"TABLES":     TABLES,
	"DROP":       DROP,
	"DESCRIBE":   DESCRIBE,
	"SHOW":       SHOW,
	"DATABASE":   DATABASE,
	"DATABASES":  DATABASES,
	"USE":        USE,
	"PRIMARY":    PRIMARY,
	"KEY":        KEY,
	"UNIQUE":     UNIQUE,
	"NOT":        NOT,
	"AND":        AND,
	"OR":         OR,
	"ORDER":      ORDER,
	"BY":         BY,
	"LIMIT":      LIMIT,
	"OFFSET":     OFFSET,
	"DEFAULT":    DEFAULT,
	"FOREIGN":    FOREIGN,
	"REFERENCES": REFERENCES,
	"IF":         IF,
	"EXISTS":     EXISTS,
	"ASC":        ASC,
	"DESC":       DESC,
	"INT":        INT,
	"INTEGER":    INTEGER,
	"STRING":     STRING,
	"FLOAT":      FLOAT,
	"DOUBLE":     DOUBLE,
	"BOOLEAN":    BOOLEAN,
	"BOOL":       BOOL,
	"TIMESTAMP":  TIMESTAMP,
}
