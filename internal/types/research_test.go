package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		wantErr bool
	}{
		{"valid", "Jane Doe", false},
		{"empty", "", true},
		{"too short", "J", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &StartJobRequest{Subject: tt.subject}
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDiscoveryItem_ProviderSerializedAsSource(t *testing.T) {
	data, err := json.Marshal(DiscoveryItem{URL: "https://a.example", Provider: "searxng"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"source":"searxng"`)
}
