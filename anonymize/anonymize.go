// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package anonymize

import (
	"strings"

	"github.com/danielhkuo/orgvote/models"
)

const (
	// Placeholder replaces sensitive values in public views.
	Placeholder = "—"

	// AnonymousLabel replaces the nickname of voters who chose anonymity.
	AnonymousLabel = "anonymous"
)

// View selects a disclosure profile.
type View int

const (
	Public View = iota
	Admin
)

func (v View) String() string {
	if v == Admin {
		return "admin"
	}
	return "public"
}

// Identity is what the anonymizer may see about a participant.
type Identity struct {
	Nickname  string
	FirstName string
	LastName  string
	Email     string
	Anonymous bool
}

// Nickname keeps names of up to six characters and otherwise shows the
// first and last three with one dot per hidden character.
func Nickname(s string) string {
	r := []rune(s)
	if len(r) <= 6 {
		return s
	}
	return string(r[:3]) + strings.Repeat(".", len(r)-6) + string(r[len(r)-3:])
}

// Email keeps the first three characters of the local part, the first
// character of the domain before its last dot, and the top-level domain.
// Everything else becomes dots.
func Email(s string) string {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return maskTail(s, 3)
	}

	local := maskTail(s[:at], 3)
	domain := s[at+1:]

	dot := strings.LastIndex(domain, ".")
	if dot < 0 {
		return local + "@" + maskTail(domain, 1)
	}

	sld := maskTail(domain[:dot], 1)
	tld := domain[dot+1:]
	if len([]rune(domain[:dot])) <= 1 {
		// Nothing was masked, so keep the separator readable.
		return local + "@" + sld + "." + tld
	}
	return local + "@" + sld + tld
}

func maskTail(s string, keep int) string {
	r := []rune(s)
	if len(r) <= keep {
		return s
	}
	return string(r[:keep]) + strings.Repeat(".", len(r)-keep)
}

// Entry renders an identity under the given view. Public entries carry
// only the redacted nickname; admin entries carry the full name and the
// redacted email.
func Entry(view View, id Identity) models.VoterEntry {
	if view == Admin {
		return models.VoterEntry{
			FirstName: id.FirstName,
			LastName:  id.LastName,
			Email:     Email(id.Email),
		}
	}
	if id.Anonymous {
		return models.VoterEntry{Nickname: AnonymousLabel}
	}
	return models.VoterEntry{Nickname: Nickname(id.Nickname)}
}

// Field returns value, or Placeholder when the field is sensitive.
func Field(value string, sensitive bool) string {
	if sensitive {
		return Placeholder
	}
	return value
}
