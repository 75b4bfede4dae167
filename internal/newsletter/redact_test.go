package newsletter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"typical address", "jane@gmail.com", "j***@gmail.com"},
		{"single char local part", "j@gmail.com", "j***@gmail.com"},
		{"empty local part", "@gmail.com", "***@gmail.com"},
		{"no at sign", "not-an-email", "***"},
		{"empty string", "", ""},
		{"subdomain", "chef@mail.forkandfire.com", "c***@mail.forkandfire.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RedactEmail(tt.email))
		})
	}
}
