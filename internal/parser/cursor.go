package parser

import (
	"github.com/tsnlang/tsn/internal/token"
)

// cursor is the restartable token cursor named in spec.md §4.2: backup saves
// a checkpoint, restore rewinds to one, and commit discards a checkpoint once
// a speculative parse has succeeded and should not be undone.
type cursor struct {
	toks []token.Token
	pos  int
}

func newCursor(toks []token.Token) *cursor {
	// Comments never reach the parser (spec.md §4.1: "letting the parser skip
	// them uniformly"); filter them out once up front.
	filtered := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind != token.Comment {
			filtered = append(filtered, t)
		}
	}
	return &cursor{toks: filtered}
}

// peek returns the current token without consuming it.
func (c *cursor) peek() token.Token {
	return c.peekAt(0)
}

// peekAt returns the token n positions ahead of the current one without
// consuming anything.
func (c *cursor) peekAt(n int) token.Token {
	i := c.pos + n
	if i >= len(c.toks) {
		return c.toks[len(c.toks)-1] // EOF sentinel, always last
	}
	return c.toks[i]
}

// next consumes and returns the current token.
func (c *cursor) next() token.Token {
	t := c.peek()
	if c.pos < len(c.toks)-1 {
		c.pos++
	}
	return t
}

// backup returns a checkpoint that restore can rewind to.
func (c *cursor) backup() int {
	return c.pos
}

// restore rewinds the cursor to a previously returned checkpoint.
func (c *cursor) restore(checkpoint int) {
	c.pos = checkpoint
}

// commit is a no-op marker: it documents that the caller intentionally keeps
// the cursor's current position rather than restoring checkpoint. It exists
// so call sites read symmetrically with backup/restore.
func (c *cursor) commit(int) {}

func (c *cursor) at(k token.Kind) bool {
	return c.peek().Kind == k
}

func (c *cursor) accept(k token.Kind) (token.Token, bool) {
	if c.at(k) {
		return c.next(), true
	}
	return token.Token{}, false
}
