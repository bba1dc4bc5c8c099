package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFilter(t *testing.T, mode FilterMode, id string) Filter {
	t.Helper()
	f, err := NewFilter(mode, id)
	require.NoError(t, err)
	return f
}

func mustGroup(t *testing.T, id string, mode GroupMode, f Filter) Target {
	t.Helper()
	g, err := Group(id, mode, f)
	require.NoError(t, err)
	return g
}

func TestTargetKey_Format(t *testing.T) {
	t.Parallel()

	inc := mustFilter(t, FilterInclude, "f-1")

	cases := []struct {
		name   string
		target Target
		want   Key
	}{
		{"all devices", AllDevices(NoFilter), "allDevices|filter:none"},
		{"all users with filter", AllUsers(inc), "allUsers|filter:include:f-1"},
		{"group", mustGroup(t, "g-1", GroupInclude, NoFilter), "group:g-1|filter:none"},
		{"group with filter", mustGroup(t, "g-1", GroupInclude, mustFilter(t, FilterExclude, "f-2")), "group:g-1|filter:exclude:f-2"},
		{"exclusion", mustGroup(t, "g-1", GroupExclude, NoFilter), "excludeGroup:g-1|filter:none"},
		{"other", Other("#microsoft.graph.SomethingNew", NoFilter), "other:#microsoft.graph.somethingnew|filter:none"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.target.Key())
		})
	}
}

func TestTargetKey_EqualIffSameTuple(t *testing.T) {
	t.Parallel()

	inc1 := mustFilter(t, FilterInclude, "f-1")
	exc1 := mustFilter(t, FilterExclude, "f-1")
	inc2 := mustFilter(t, FilterInclude, "f-2")

	targets := []Target{
		AllDevices(NoFilter),
		AllDevices(inc1),
		AllDevices(exc1),
		AllDevices(inc2),
		AllUsers(NoFilter),
		AllUsers(inc1),
		mustGroup(t, "g-1", GroupInclude, NoFilter),
		mustGroup(t, "g-1", GroupInclude, inc1),
		mustGroup(t, "g-2", GroupInclude, NoFilter),
		mustGroup(t, "g-1", GroupExclude, NoFilter),
		mustGroup(t, "g-2", GroupExclude, NoFilter),
	}

	for i, a := range targets {
		for j, b := range targets {
			if i == j {
				assert.Equal(t, a.Key(), b.Key())
				assert.True(t, a.Equal(b))
				continue
			}
			assert.NotEqual(t, a.Key(), b.Key(), "targets %d and %d collide", i, j)
		}
	}
}

func TestNewFilter_NoneClearsID(t *testing.T) {
	t.Parallel()

	f, err := NewFilter(FilterNone, "f-1")
	require.NoError(t, err)
	assert.True(t, f.IsNone())
	assert.Empty(t, f.ID())
	assert.Equal(t, AllDevices(NoFilter).Key(), AllDevices(f).Key())

	_, err = NewFilter(FilterInclude, "  ")
	require.ErrorIs(t, err, ErrFilterIDRequired)
}

func TestGroup_RejectsExclusionWithFilter(t *testing.T) {
	t.Parallel()

	_, err := Group("g-1", GroupExclude, mustFilter(t, FilterInclude, "f-1"))
	require.ErrorIs(t, err, ErrExclusionFilter)

	_, err = Group("", GroupInclude, NoFilter)
	require.ErrorIs(t, err, ErrGroupIDRequired)
}

func TestDecodeKey_RoundTrip(t *testing.T) {
	t.Parallel()

	targets := []Target{
		AllDevices(NoFilter),
		AllUsers(mustFilter(t, FilterExclude, "f-9")),
		mustGroup(t, "g-1", GroupInclude, mustFilter(t, FilterInclude, "f-1")),
		mustGroup(t, "g-2", GroupExclude, NoFilter),
	}
	for _, target := range targets {
		decoded, err := DecodeKey(target.Key())
		require.NoError(t, err)
		assert.Equal(t, target.Key(), decoded.Key())
	}

	for _, bad := range []Key{"allDevices", "group:|filter:none", "allDevices|filter:include:", "bogus|filter:none", "allUsers|filter:none:x"} {
		_, err := DecodeKey(bad)
		assert.Error(t, err, "key %q", bad)
	}
}
