package flags

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Enabled(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		flag     string
		expected bool
	}{
		{
			name:     "known flag set to true returns true",
			registry: New(map[string]bool{FlagListEvents: true}),
			flag:     FlagListEvents,
			expected: true,
		},
		{
			name:     "known flag set to false returns false",
			registry: New(map[string]bool{FlagForwardLogs: false}),
			flag:     FlagForwardLogs,
			expected: false,
		},
		{
			name:     "missing flag returns false",
			registry: New(map[string]bool{FlagListEvents: true}),
			flag:     FlagTraceDeliveries,
			expected: false,
		},
		{
			name:     "nil registry returns false",
			registry: nil,
			flag:     FlagListEvents,
			expected: false,
		},
		{
			name:     "nil flags map returns false",
			registry: New(nil),
			flag:     FlagListEvents,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.Enabled(tt.flag))
		})
	}
}

func TestRegistry_EnabledNames(t *testing.T) {
	r := New(map[string]bool{
		FlagTraceDeliveries: true,
		FlagForwardLogs:     false,
		FlagListEvents:      true,
	})
	require.Equal(t, []string{FlagListEvents, FlagTraceDeliveries}, r.EnabledNames())

	var nilRegistry *Registry
	require.Nil(t, nilRegistry.EnabledNames())
}

func TestRegistry_All(t *testing.T) {
	tests := []struct {
		name     string
		registry *Registry
		expected map[string]bool
	}{
		{
			name:     "returns all flags",
			registry: New(map[string]bool{"a": true, "b": false}),
			expected: map[string]bool{"a": true, "b": false},
		},
		{
			name:     "returns empty map for nil registry",
			registry: nil,
			expected: map[string]bool{},
		},
		{
			name:     "returns empty map for nil flags",
			registry: New(nil),
			expected: map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.registry.All())
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	original := map[string]bool{FlagListEvents: true}
	r := New(original)

	original[FlagListEvents] = false
	original[FlagForwardLogs] = true

	require.True(t, r.Enabled(FlagListEvents), "registry should not see caller mutations")
	require.False(t, r.Enabled(FlagForwardLogs))

	copied := r.All()
	copied[FlagListEvents] = false
	require.True(t, r.Enabled(FlagListEvents), "registry should not be affected by copy mutation")
}
