package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestValidationService_SnapshotRequest(t *testing.T) {
	v := NewValidationService(&ValidationServiceConfig{MaxDepth: 50})

	tests := []struct {
		name    string
		in      map[string]interface{}
		want    *SnapshotRequest
		wantErr bool
	}{
		{"symbol only", map[string]interface{}{"symbol": "btcusdt"}, &SnapshotRequest{Symbol: "btcusdt"}, false},
		{"with depth", map[string]interface{}{"symbol": "btcusdt", "maxDepth": 20}, &SnapshotRequest{Symbol: "btcusdt", MaxDepth: 20}, false},
		{"depth at limit", map[string]interface{}{"symbol": "btcusdt", "maxDepth": 50}, &SnapshotRequest{Symbol: "btcusdt", MaxDepth: 50}, false},
		{"missing symbol", map[string]interface{}{}, nil, true},
		{"blank symbol", map[string]interface{}{"symbol": "  "}, nil, true},
		{"numeric symbol", map[string]interface{}{"symbol": 1}, nil, true},
		{"negative depth", map[string]interface{}{"symbol": "btcusdt", "maxDepth": -1}, nil, true},
		{"string depth", map[string]interface{}{"symbol": "btcusdt", "maxDepth": "10"}, nil, true},
		{"depth over limit", map[string]interface{}{"symbol": "btcusdt", "maxDepth": 51}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := structpb.NewStruct(tt.in)
			require.NoError(t, err)

			got, err := v.SnapshotRequest(in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewValidationService_Defaults(t *testing.T) {
	v := NewValidationService(nil)
	assert.Equal(t, DefaultMaxDepth, v.config.MaxDepth)
}
