package lex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Kind
	}
	return out
}

func TestLexerSelect(t *testing.T) {
	tokens := New("SELECT id, name FROM users WHERE age >= 21;").Tokenize()
	assert.Equal(t, []TokenKind{
		SELECT, IDENT, COMMA, IDENT, FROM, IDENT, WHERE, IDENT, GTE, NUMBER, SEMICOLON, END,
	}, kinds(tokens))
	assert.Equal(t, "users", tokens[5].Value)
	assert.Equal(t, "21", tokens[9].Value)
}

func TestLexerKeywordsCaseInsensitive(t *testing.T) {
	tokens := New("select * from Users").Tokenize()
	assert.Equal(t, []TokenKind{SELECT, STAR, FROM, IDENT, END}, kinds(tokens))
	assert.Equal(t, "Users", tokens[3].Value)
}

func TestLexerOperators(t *testing.T) {
	tokens := New("= != <> < > <= >= + - * /").Tokenize()
	assert.Equal(t, []TokenKind{
		EQ, NEQ, NEQ, LT, GT, LTE, GTE, PLUS, MINUS, STAR, SLASH, END,
	}, kinds(tokens))
	assert.Equal(t, "<>", tokens[2].Value)
}

func TestLexerLiterals(t *testing.T) {
	tokens := New("42 3.14 'hello' \"world\" true FALSE null").Tokenize()
	assert.Equal(t, []TokenKind{
		NUMBER, FLOAT_LITERAL, STRING_LITERAL, STRING_LITERAL,
		BOOLEAN_LITERAL, BOOLEAN_LITERAL, NULL_LITERAL, END,
	}, kinds(tokens))
	assert.Equal(t, "hello", tokens[2].Value)
	assert.Equal(t, "world", tokens[3].Value)
}

func TestLexerStringEscapes(t *testing.T) {
	tokens := New(`'it\'s'`).Tokenize()
	require.Equal(t, STRING_LITERAL, tokens[0].Kind)
	assert.Equal(t, "it's", tokens[0].Value)
}

func TestLexerUnterminatedString(t *testing.T) {
	tokens := New("'oops").Tokenize()
	require.Equal(t, ERROR, tokens[0].Kind)
}

func TestLexerComments(t *testing.T) {
	input := `SELECT -- line comment
	/* block
	   comment */ name FROM t`
	tokens := New(input).Tokenize()
	assert.Equal(t, []TokenKind{SELECT, IDENT, FROM, IDENT, END}, kinds(tokens))
}

func TestLexerDottedColumn(t *testing.T) {
	tokens := New("u.name").Tokenize()
	assert.Equal(t, []TokenKind{IDENT, DOT, IDENT, END}, kinds(tokens))
}

func TestLexerLineAndColumn(t *testing.T) {
	tokens := New("SELECT\n  id").Tokenize()
	require.Len(t, tokens, 3)
	assert.Equal(t, 1, tokens[0].Line)
	assert.Equal(t, 1, tokens[0].Column)
	assert.Equal(t, 2, tokens[1].Line)
	assert.Equal(t, 3, tokens[1].Column)
}

func TestLexerInvalidCharacter(t *testing.T) {
	tokens := New("SELECT @").Tokenize()
	assert.Equal(t, []TokenKind{SELECT, ERROR, END}, kinds(tokens))
	assert.Equal(t, "@", tokens[1].Value)
}

func TestLexerCreateTable(t *testing.T) {
	input := "CREATE TABLE IF NOT EXISTS t (id INT PRIMARY KEY, tag STRING(32) DEFAULT 'x')"
	tokens := New(input).Tokenize()
	assert.Equal(t, []TokenKind{
		CREATE, TABLE, IF, NOT, EXISTS, IDENT, LPAREN,
		IDENT, INT, PRIMARY, KEY, COMMA,
		IDENT, STRING, LPAREN, NUMBER, RPAREN, DEFAULT, STRING_LITERAL,
		RPAREN, END,
	}, kinds(tokens))
}
