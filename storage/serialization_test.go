package storage

import (
	"testing"
	"time"

	"github.com/poiesic/viewstore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		token string
		body  []byte
	}{
		{"empty token", "", []byte(`{"id":"1"}`)},
		{"uuid token", NewToken(), []byte(`{"id":"1","foo":"bar"}`)},
		{"empty body", "t", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalEnvelope(tt.token, tt.body)
			require.NotEmpty(t, data)

			token, body, err := UnmarshalEnvelope(data)
			require.NoError(t, err)
			assert.Equal(t, tt.token, token)
			assert.Equal(t, string(tt.body), string(body))
		})
	}
}

func TestUnmarshalEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"trailing bytes", append(MarshalEnvelope("t", []byte("{}")), 0x01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UnmarshalEnvelope(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestUnmarshalEnvelopeRecord(t *testing.T) {
	when := time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC)
	token, attrs := Stamp("42", core.Attributes{"foo": "bar", "at": when})
	body, err := EncodeAttributes(attrs)
	require.NoError(t, err)

	rec, err := UnmarshalEnvelopeRecord(MarshalEnvelope(token, body))
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, token, rec.Token)
	assert.Equal(t, "bar", rec.Attributes.Get("foo"))
	assert.Equal(t, when, rec.Attributes.Get("at"))
	assert.Equal(t, token, rec.Attributes.Get(TokenField))
}
