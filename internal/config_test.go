package internal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"duochat/domain"
)

func TestConfig_Identities(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name      string
		whitelist string
		want      []domain.Identity
	}{
		{"two identities", "ael,noa", []domain.Identity{"ael", "noa"}},
		{"spaces trimmed", " ael , noa ", []domain.Identity{"ael", "noa"}},
		{"trailing comma ignored", "ael,noa,", []domain.Identity{"ael", "noa"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{Whitelist: tt.whitelist}
			req.Equal(tt.want, config.Identities())
		})
	}
}
