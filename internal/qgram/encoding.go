// Package qgram encodes strings into phonetic symbol codes and slices the
// encoded form into fixed-width q-grams.
package qgram

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/errors"
)

// Code is the symbol code of a single input character.
type Code uint8

const (
	// DigitThree is the code for '3', which shares no letter.
	DigitThree Code = 27
	// Blank is shared by space, hyphen and underscore.
	Blank Code = 28
	// SentinelCode stands in for every unrecognised byte under PolicySentinel.
	SentinelCode Code = 29
)

// codeTable maps a byte to its code; zero means unrecognised.
var codeTable = func() [256]Code {
	var t [256]Code
	for c := byte('A'); c <= 'Z'; c++ {
		t[c] = Code(c - '@')
		t[c+'a'-'A'] = Code(c - '@')
	}
	digits := map[byte]byte{
		'0': 'O', '1': 'I', '2': 'Z', '4': 'A', '5': 'S',
		'6': 'G', '7': 'T', '8': 'B', '9': 'Q',
	}
	for d, letter := range digits {
		t[d] = t[letter]
	}
	t['3'] = DigitThree
	t[' '] = Blank
	t['-'] = Blank
	t['_'] = Blank
	return t
}()

// Encode returns the code for b and whether b is in the recognised alphabet.
func Encode(b byte) (Code, bool) {
	c := codeTable[b]
	return c, c != 0
}

// UnknownPolicy decides what happens to bytes outside the alphabet.
type UnknownPolicy int

const (
	PolicyReject UnknownPolicy = iota
	PolicySkip
	PolicySentinel
)

func (p UnknownPolicy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	case PolicySentinel:
		return "sentinel"
	default:
		return "reject"
	}
}

// ParsePolicy parses "reject", "skip" or "sentinel" (case-insensitive).
func ParsePolicy(s string) (UnknownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return PolicyReject, nil
	case "skip":
		return PolicySkip, nil
	case "sentinel":
		return PolicySentinel, nil
	}
	return PolicyReject, apperrors.Newf(apperrors.ErrInvalidConfig, apperrors.ExitUsage,
		"unknown character policy %q", s)
}

// Encoder turns strings into code sequences under a fixed policy.
type Encoder struct {
	Policy UnknownPolicy
}

// EncodeString encodes every byte of s. Under PolicyReject the first
// unrecognised byte produces an error wrapping ErrUnrecognizedCharacter.
func (e Encoder) EncodeString(s string) ([]Code, error) {
	out := make([]Code, 0, len(s))
	for i := 0; i < len(s); i++ {
		c, ok := Encode(s[i])
		if ok {
			out = append(out, c)
			continue
		}
		switch e.Policy {
		case PolicySkip:
		case PolicySentinel:
			out = append(out, SentinelCode)
		default:
			return nil, fmt.Errorf("byte %q at offset %d: %w", s[i], i, apperrors.ErrUnrecognizedCharacter)
		}
	}
	return out, nil
}
