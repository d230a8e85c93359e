package djtemplate

import "fmt"

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError represents an error during lexical analysis.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// ParseError represents an error during parsing.
type ParseError struct {
	baseError
}

// NewParseError creates a new parser error.
func NewParseError(pos Position, msg string) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: msg}}
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// UnmatchedBlockError indicates a block tag without its closing counterpart,
// or a closing tag without an opener.
type UnmatchedBlockError struct {
	baseError
	Tag string // the tag that was unmatched
}

// NewUnmatchedBlockError creates a new unmatched block error for tag.
func NewUnmatchedBlockError(pos Position, tag string) *UnmatchedBlockError {
	var msg string
	if opener, ok := closerOf[tag]; ok {
		msg = fmt.Sprintf("'%s' without matching '%s'", tag, opener)
	} else {
		msg = fmt.Sprintf("unclosed '%s' tag (missing 'end%s')", tag, tag)
	}
	return &UnmatchedBlockError{
		baseError: baseError{pos: pos, msg: msg},
		Tag:       tag,
	}
}
