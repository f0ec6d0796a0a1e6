package observable

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDependencySet_Matches(t *testing.T) {
	tests := []struct {
		name    string
		deps    []string
		changed []string
		want    bool
	}{
		{"empty set is wildcard", nil, []string{"a"}, true},
		{"empty set with empty change", nil, nil, true},
		{"intersecting", []string{"a", "b"}, []string{"b", "c"}, true},
		{"disjoint", []string{"a"}, []string{"b"}, false},
		{"no changed keys", []string{"a"}, nil, false},
		{"no prefix matching", []string{"user"}, []string{"user.name"}, false},
		{"case sensitive", []string{"A"}, []string{"a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDependencySet(tt.deps...).Matches(NewDependencySet(tt.changed...))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDependencySet_DuplicatesCollapse(t *testing.T) {
	set := NewDependencySet("a", "a", "b")

	require.Len(t, set, 2)
	require.True(t, set.Has("a"))
	require.False(t, set.Has("c"))
	require.Equal(t, []string{"a", "b"}, set.Sorted())
}

func TestValue_Keys(t *testing.T) {
	require.Equal(t, []string{"x", "y"}, Value{"y": 1, "x": 2}.Keys().Sorted())
	require.Empty(t, Value(nil).Keys())
}

func TestInvalidValueError_Message(t *testing.T) {
	_, err := asValue([]int{1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected a keyed mapping")
	require.Contains(t, err.Error(), "array")

	_, err = asValue(nil)
	require.Contains(t, err.Error(), "got nil")
}
