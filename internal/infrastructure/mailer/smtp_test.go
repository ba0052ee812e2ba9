package mailer

import (
	"testing"

	"github.com/pricealert/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"user@gmail.com", true},
		{"first.last+tag@naver.com", true},
		{"", false},
		{"no-at-sign", false},
		{"user@", false},
		{"@gmail.com", false},
		{"two@@gmail.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAddress(tt.addr))
		})
	}
}

func TestDomainAllowed(t *testing.T) {
	assert.True(t, DomainAllowed("a@gmail.com", DefaultAllowedDomains))
	assert.True(t, DomainAllowed("a@NAVER.com", DefaultAllowedDomains))
	assert.False(t, DomainAllowed("a@daum.net", DefaultAllowedDomains))
	assert.False(t, DomainAllowed("not-an-address", DefaultAllowedDomains))
	assert.True(t, DomainAllowed("a@daum.net", nil))
}

func TestNewSMTPMailer(t *testing.T) {
	t.Run("resolves server from sender domain", func(t *testing.T) {
		m, err := NewSMTPMailer(Config{Sender: "bot@naver.com", Password: "app-pass"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "smtp.naver.com", m.config.Host)
		assert.Equal(t, 587, m.config.Port)
	})

	t.Run("explicit host wins", func(t *testing.T) {
		m, err := NewSMTPMailer(Config{Sender: "bot@example.org", Password: "x", Host: "mail.example.org", Port: 2525}, nil)
		require.NoError(t, err)
		assert.Equal(t, "mail.example.org", m.config.Host)
		assert.Equal(t, 2525, m.config.Port)
	})

	t.Run("unknown domain without host", func(t *testing.T) {
		_, err := NewSMTPMailer(Config{Sender: "bot@example.org", Password: "x"}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("missing password", func(t *testing.T) {
		_, err := NewSMTPMailer(Config{Sender: "bot@gmail.com"}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})
}
