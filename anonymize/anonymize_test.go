package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danielhkuo/orgvote/models"
)

func TestNickname(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"bob", "bob"},
		{"abcdef", "abcdef"},
		{"abcdefg", "abc.efg"},
		{"abcdefghi", "abc...ghi"},
		{"zażółćgęś", "zaż...gęś"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Nickname(tt.in))
		})
	}
}

func TestEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jan.kowalski@example.com", "jan.........@e......com"},
		{"al@example.org", "al@e......org"},
		{"anna@mail.example.co.uk", "ann.@m..............uk"},
		{"bob@x.io", "bob@x.io"},
		{"root@localhost", "roo.@l........"},
		{"not-an-email", "not........."},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Email(tt.in))
		})
	}
}

func TestEntry(t *testing.T) {
	id := Identity{
		Nickname:  "jankowalski",
		FirstName: "Jan",
		LastName:  "Kowalski",
		Email:     "jan.kowalski@example.com",
	}

	assert.Equal(t, models.VoterEntry{Nickname: "jan.....ski"}, Entry(Public, id))
	assert.Equal(t, models.VoterEntry{FirstName: "Jan", LastName: "Kowalski", Email: "jan.........@e......com"},
		Entry(Admin, id))

	id.Anonymous = true
	assert.Equal(t, AnonymousLabel, Entry(Public, id).Nickname)
	assert.Equal(t, "Jan", Entry(Admin, id).FirstName, "admin view still identifies anonymous voters")
}

func TestField(t *testing.T) {
	assert.Equal(t, Placeholder, Field("555-0100", true), "sensitive field is masked")
	assert.Equal(t, "Springfield", Field("Springfield", false))
}
