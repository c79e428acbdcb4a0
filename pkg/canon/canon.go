// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package canon canonicalizes account identifiers before they are stored or compared.
//
// # Usage
//
// Usernames and emails are unique per account type. Two spellings that look the
// same to a person ("Ｊohn", "john") must collide, so both are folded through
// Unicode NFKC and case folding before any lookup.
package canon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// handleInvalid matches runs of characters not allowed in a derived username.
	handleInvalid = regexp.MustCompile(`[^a-z0-9._-]+`)
)

// Username returns the canonical form of a username.
func Username(s string) string {
	return foldString(s)
}

// Email returns the canonical form of an email address.
func Email(s string) string {
	return foldString(s)
}

// HandleFromEmail derives a username candidate from the local part of an email.
//
// It returns an empty string when nothing usable remains.
func HandleFromEmail(email string) string {
	local, _, _ := strings.Cut(Email(email), "@")

	// Drop accents so "josé" becomes "jose"
	local = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, norm.NFD.String(local))

	local = handleInvalid.ReplaceAllString(local, "")
	return strings.Trim(local, "._-")
}

// foldString applies NFKC and full case folding. A Caser is stateful, so each call builds its own.
func foldString(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}
