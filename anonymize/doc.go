// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package anonymize redacts participant identities for display.

Two disclosure profiles exist. Public listings show only a redacted
nickname:

	anonymize.Nickname("abcdefghi") // "abc...ghi"

Admin listings show first and last name plus a redacted email:

	anonymize.Email("jan.kowalski@example.com") // "jan.........@e......com"

Entry builds a models.VoterEntry for either view. The entry type has no
slot for any other profile field, so location, phone and similar data
cannot leak through a listing. Field masks sensitive profile-bound
survey answers with Placeholder.
*/
package anonymize
