package lex

import (
	"strings"
)

// Lexer walks the input one byte at a time. SQL here is ASCII-only on the
// keyword side; identifiers and string literals may carry arbitrary bytes.
type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
	line    int
	column  int
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Tokenize consumes the whole input and returns the token stream,
// terminated by an END token.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == END {
			return tokens
		}
	}
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	line, column := l.line, l.column

	switch l.ch {
	case 0:
		return Token{Kind: END, Line: line, Column: column}
	case ',':
		return l.single(COMMA, line, column)
	case ';':
		return l.single(SEMICOLON, line, column)
	case '(':
		return l.single(LPAREN, line, column)
	case ')':
		return l.single(RPAREN, line, column)
	case '.':
		return l.single(DOT, line, column)
	case '+':
		return l.single(PLUS, line, column)
	case '-':
		return l.single(MINUS, line, column)
	case '*':
		return l.single(STAR, line, column)
	case '/':
		return l.single(SLASH, line, column)
	case '=':
		return l.single(EQ, line, column)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: NEQ, Value: "!=", Line: line, Column: column}
		}
		return l.single(ERROR, line, column)
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			l.readChar()
			return Token{Kind: LTE, Value: "<=", Line: line, Column: column}
		case '>':
			l.readChar()
			l.readChar()
			return Token{Kind: NEQ, Value: "<>", Line: line, Column: column}
		}
		return l.single(LT, line, column)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			l.readChar()
			return Token{Kind: GTE, Value: ">=", Line: line, Column: column}
		}
		return l.single(GT, line, column)
	case '\'', '"':
		return l.readStringLiteral(line, column)
	}

	if isLetter(l.ch) {
		word := l.readWord()
		return Token{Kind: wordKind(word), Value: word, Line: line, Column: column}
	}
	if isDigit(l.ch) {
		return l.readNumber(line, column)
	}
	return l.single(ERROR, line, column)
}

func (l *Lexer) single(kind TokenKind, line, column int) Token {
	tok := Token{Kind: kind, Value: string(l.ch), Line: line, Column: column}
	l.readChar()
	return tok
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar() // *
				l.readChar() // /
			}
		default:
			return
		}
	}
}

func isLetter(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) readWord() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// wordKind classifies a bare word: keyword, boolean/NULL literal, or
// identifier. Keyword matching is case-insensitive.
func wordKind(word string) TokenKind {
	upper := strings.ToUpper(word)
	switch upper {
	case "TRUE", "FALSE":
		return BOOLEAN_LITERAL
	case "NULL":
		return NULL_LITERAL
	}
	if kind, ok := keywords[upper]; ok {
		return kind
	}
	return IDENT
}

func (l *Lexer) readNumber(line, column int) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	kind := NUMBER
	if l.ch == '.' && isDigit(l.peekChar()) {
		kind = FLOAT_LITERAL
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Kind: kind, Value: l.input[start:l.pos], Line: line, Column: column}
}

// readStringLiteral strips the surrounding quotes and resolves \' and \"
// escapes. An unterminated literal comes back as ERROR.
func (l *Lexer) readStringLiteral(line, column int) Token {
	quote := l.ch
	l.readChar()

	var sb strings.Builder
	for l.ch != quote {
		if l.ch == 0 {
			return Token{Kind: ERROR, Value: "unterminated string literal", Line: line, Column: column}
		}
		if l.ch == '\\' && (l.peekChar() == '\'' || l.peekChar() == '"' || l.peekChar() == '\\') {
			l.readChar()
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar() // closing quote
	return Token{Kind: STRING_LITERAL, Value: sb.String(), Line: line, Column: column}
}
