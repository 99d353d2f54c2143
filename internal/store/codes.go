package store

import "github.com/jmcvetta/randutil"

// codeAlphabet drops I, O, 0 and 1 so players never have to guess which
// glyph they are reading off a friend's screen.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// allocation gives up after this many collisions with active rooms.
const maxCodeAttempts = 10

func newCode(length int) (string, error) {
	return randutil.String(length, codeAlphabet)
}
