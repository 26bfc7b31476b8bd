package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{BaseURL: "https://api.openai.com/v1", Model: "text-embedding-3-small", APIKey: "sk-test"},
		},
		{
			name:    "missing base url",
			cfg:     Config{Model: "text-embedding-3-small"},
			wantErr: true,
		},
		{
			name:    "missing model",
			cfg:     Config{BaseURL: "https://api.openai.com/v1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(Config{
		BaseURL: "http://localhost:8080/v1",
		Model:   "BAAI/bge-small-en-v1.5",
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	_, err = NewService(Config{})
	assert.Error(t, err)
}
