package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHeapSize(t *testing.T) {
	tests := []struct {
		name    string
		flagVal uint64
		flagSet bool
		config  uint64
		want    uint64
		wantErr bool
	}{
		{"flag not given uses config", 0, false, 30000, 30000, false},
		{"flag overrides config", 65536, true, 30000, 65536, false},
		{"explicit zero is rejected", 0, true, 30000, 0, true},
		{"zero config with no flag is rejected", 0, false, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveHeapSize(tt.flagVal, tt.flagSet, tt.config)
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "heap size must be positive")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
