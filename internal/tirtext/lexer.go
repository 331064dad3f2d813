// Package tirtext reads the textual form of tir modules.
//
// The syntax is the one produced by tir.Print. A file may start with a
// "#tir <version>" header; line comments start with "//".
package tirtext

import (
	"fmt"
)

// TokenType is the kind of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal

	TokenIdent
	TokenInt
	TokenFloat
	TokenString
	TokenExtern // @name

	TokenPlus
	TokenMinus
	TokenMul
	TokenDiv
	TokenMod
	TokenAssign
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenAnd
	TokenOr
	TokenNot

	TokenLParen
	TokenRParen
	TokenLBrace
	TokenRBrace
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenColon
)

var tokenNames = map[TokenType]string{
	TokenEOF:      "EOF",
	TokenIllegal:  "ILLEGAL",
	TokenIdent:    "identifier",
	TokenInt:      "integer",
	TokenFloat:    "float",
	TokenString:   "string",
	TokenExtern:   "extern",
	TokenPlus:     "+",
	TokenMinus:    "-",
	TokenMul:      "*",
	TokenDiv:      "/",
	TokenMod:      "%",
	TokenAssign:   "=",
	TokenEq:       "==",
	TokenNe:       "!=",
	TokenLt:       "<",
	TokenLe:       "<=",
	TokenGt:       ">",
	TokenGe:       ">=",
	TokenAnd:      "&&",
	TokenOr:       "||",
	TokenNot:      "!",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenLBrace:   "{",
	TokenRBrace:   "}",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenComma:    ",",
	TokenColon:    ":",
}

func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

// Position is a 1-based line and column.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is one lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// Lexer splits tir text into tokens. Newlines are insignificant.
type Lexer struct {
	input        string
	position     int // current char
	readPosition int // next char
	ch           byte
	line         int
	column       int
}

// NewLexer returns a lexer positioned at the start of input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// NextToken returns the next token; TokenEOF repeats at the end of input.
func (l *Lexer) NextToken() Token {
	l.skipSpaceAndComments()
	pos := Position{Line: l.line, Column: l.column}
	tok := func(t TokenType, lit string) Token {
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	two := func(next byte, double, single TokenType) Token {
		if l.peekChar() == next {
			first := l.ch
			l.readChar()
			l.readChar()
			return tok(double, string([]byte{first, next}))
		}
		ch := l.ch
		l.readChar()
		return tok(single, string(ch))
	}

	switch ch := l.ch; {
	case ch == 0:
		return tok(TokenEOF, "")
	case isLetter(ch):
		return tok(TokenIdent, l.readIdentifier())
	case isDigit(ch):
		lit, isFloat := l.readNumber()
		if isFloat {
			return tok(TokenFloat, lit)
		}
		return tok(TokenInt, lit)
	case ch == '"':
		lit, ok := l.readString()
		if !ok {
			return tok(TokenIllegal, lit)
		}
		return tok(TokenString, lit)
	case ch == '@':
		l.readChar()
		if !isLetter(l.ch) {
			return tok(TokenIllegal, "@")
		}
		return tok(TokenExtern, l.readIdentifier())
	case ch == '=':
		return two('=', TokenEq, TokenAssign)
	case ch == '!':
		return two('=', TokenNe, TokenNot)
	case ch == '<':
		return two('=', TokenLe, TokenLt)
	case ch == '>':
		return two('=', TokenGe, TokenGt)
	case ch == '&':
		if l.peekChar() != '&' {
			l.readChar()
			return tok(TokenIllegal, "&")
		}
		return two('&', TokenAnd, TokenIllegal)
	case ch == '|':
		if l.peekChar() != '|' {
			l.readChar()
			return tok(TokenIllegal, "|")
		}
		return two('|', TokenOr, TokenIllegal)
	}

	single := map[byte]TokenType{
		'+': TokenPlus, '-': TokenMinus, '*': TokenMul, '/': TokenDiv, '%': TokenMod,
		'(': TokenLParen, ')': TokenRParen, '{': TokenLBrace, '}': TokenRBrace,
		'[': TokenLBracket, ']': TokenRBracket, ',': TokenComma, ':': TokenColon,
	}
	ch := l.ch
	l.readChar()
	if t, ok := single[ch]; ok {
		return tok(t, string(ch))
	}
	return tok(TokenIllegal, string(ch))
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber reads digits with an optional fraction, exponent and a type
// suffix such as u64 or f64.
func (l *Lexer) readNumber() (string, bool) {
	start := l.position
	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '-' || next == '+' {
			isFloat = true
			l.readChar()
			if l.ch == '-' || l.ch == '+' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	if l.ch == 'f' {
		isFloat = true
	}
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position], isFloat
}

func (l *Lexer) readString() (string, bool) {
	start := l.position
	l.readChar()
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return l.input[start:l.position], false
		}
		if l.ch == '\\' {
			l.readChar()
		}
		l.readChar()
	}
	l.readChar()
	return l.input[start:l.position], true
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
