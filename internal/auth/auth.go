// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth decides whether a caller credential may invoke the outer
// operations.
package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-reader/internal/secrets"
)

// Authorizer checks a caller credential.
type Authorizer interface {
	Authorized(credential string) bool
}

// AllowAll authorizes every caller. It is used when auth is disabled.
type AllowAll struct{}

// Authorized always returns true.
func (AllowAll) Authorized(string) bool { return true }

// TokenSet authorizes callers presenting one of a fixed set of tokens.
type TokenSet struct {
	tokens [][]byte
}

// NewTokenSet builds a TokenSet from tokens. Empty tokens are ignored.
func NewTokenSet(tokens ...string) *TokenSet {
	ts := &TokenSet{}
	for _, tok := range tokens {
		if tok != "" {
			ts.tokens = append(ts.tokens, []byte(tok))
		}
	}
	return ts
}

// LoadTokenSet reads the api-tokens secret from dir. A missing or empty
// file is an error, since enabling auth with no tokens would lock out
// every caller.
func LoadTokenSet(dir string, log zerolog.Logger) (*TokenSet, error) {
	loaded, err := secrets.Load(dir, log)
	if err != nil {
		return nil, err
	}
	ts := NewTokenSet(secrets.Lines(loaded[secrets.APITokens])...)
	if ts.Len() == 0 {
		return nil, fmt.Errorf("auth enabled but no tokens found in %s/%s", dir, secrets.APITokens)
	}
	return ts, nil
}

// Len returns the number of accepted tokens.
func (ts *TokenSet) Len() int {
	return len(ts.tokens)
}

// Authorized reports whether credential matches an accepted token. Every
// token is compared so timing does not reveal which one matched.
func (ts *TokenSet) Authorized(credential string) bool {
	if credential == "" {
		return false
	}
	c := []byte(credential)
	match := 0
	for _, tok := range ts.tokens {
		match |= subtle.ConstantTimeCompare(c, tok)
	}
	return match == 1
}
