package dict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetString_LookupString(t *testing.T) {
	d := New()
	require.NoError(t, d.SetString("NAME", "Ada"))
	got, ok := d.LookupString("NAME")
	require.True(t, ok)
	require.Equal(t, "Ada", got)
}

func TestSetString_RejectsSectionMarker(t *testing.T) {
	d := New()
	require.NoError(t, d.AddDictionary("ROW", New()))
	require.Error(t, d.SetString("ROW", "x"))
}

func TestAddDictionary_OrderPreserved(t *testing.T) {
	d := New()
	first, second, third := New(), New(), New()
	require.NoError(t, d.AddDictionary("ROW", first))
	require.NoError(t, d.AddDictionary("ROW", second))
	require.NoError(t, d.AddDictionary("ROW", third))
	val, ok := d.LookupSections("ROW")
	require.True(t, ok)
	require.Len(t, val.Sections(), 3)
	require.Same(t, first, val.Sections()[0])
	require.Same(t, second, val.Sections()[1])
	require.Same(t, third, val.Sections()[2])
}

func TestLookupString_WalksParentChain(t *testing.T) {
	root := New()
	require.NoError(t, root.SetString("OUTER", "o"))
	child := New()
	require.NoError(t, root.AddDictionary("ROW", child))
	got, ok := child.LookupString("OUTER")
	require.True(t, ok)
	require.Equal(t, "o", got)
}

func TestVariableEquals(t *testing.T) {
	d := New()
	require.NoError(t, d.SetString("STATUS", "ok"))
	require.True(t, d.VariableEquals("STATUS", "ok"))
	require.False(t, d.VariableEquals("STATUS", "fail"))
	require.False(t, d.VariableEquals("MISSING", ""))
}

func TestSetSectionVisibility(t *testing.T) {
	d := New()
	require.NoError(t, d.AddDictionary("ROW", New()))
	require.NoError(t, d.SetSectionVisibility("ROW", true))
	val, ok := d.LookupSections("ROW")
	require.True(t, ok)
	require.True(t, val.Hidden())
}

func TestFetchIncludeNamed_CachesAcrossCalls(t *testing.T) {
	calls := 0
	d := New()
	require.NoError(t, d.SetIncludeCallback("INC", func(name string) (string, bool) {
		calls++
		return "body for " + name, true
	}, nil))

	inc, ok := d.LookupInclude("INC")
	require.True(t, ok)

	first, ok := inc.FetchIncludeNamed("INC")
	require.True(t, ok)
	second, ok := inc.FetchIncludeNamed("INC")
	require.True(t, ok)

	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestFetchIncludeNamed_FallsBackToMarkerNameWithoutFilename(t *testing.T) {
	var gotName string
	d := New()
	require.NoError(t, d.SetIncludeCallback("INC", func(name string) (string, bool) {
		gotName = name
		return "x", true
	}, nil))
	inc, _ := d.LookupInclude("INC")
	_, ok := inc.FetchIncludeNamed("INC")
	require.True(t, ok)
	require.Equal(t, "INC", gotName)
}

func TestDestroy_RunsCleanupTemplateOnceForFetchedIncludes(t *testing.T) {
	cleaned := make(map[string]string)
	calls := 0
	root := New()
	require.NoError(t, root.SetIncludeCallback("INC", func(name string) (string, bool) {
		return "cached-body", true
	}, func(name, template string) {
		calls++
		cleaned[name] = template
	}))

	inc, ok := root.LookupInclude("INC")
	require.True(t, ok)
	_, ok = inc.FetchIncludeNamed("INC")
	require.True(t, ok)

	root.Destroy()

	require.Equal(t, "cached-body", cleaned["INC"])
	require.Equal(t, 1, calls)
}

func TestDestroy_SkipsCleanupForNeverFetchedIncludes(t *testing.T) {
	called := false
	root := New()
	require.NoError(t, root.SetIncludeCallback("INC", func(name string) (string, bool) {
		return "body", true
	}, func(name, template string) {
		called = true
	}))

	root.Destroy()

	require.False(t, called, "cleanup must not run for an include that was never fetched")
}

func TestDestroy_RecursesIntoChildDictionaries(t *testing.T) {
	cleaned := false
	root := New()
	child := New()
	require.NoError(t, child.SetIncludeCallback("INC", func(string) (string, bool) {
		return "body", true
	}, func(string, string) {
		cleaned = true
	}))
	require.NoError(t, root.AddDictionary("ROW", child))

	inc, _ := child.LookupInclude("INC")
	_, _ = inc.FetchIncludeNamed("INC")

	root.Destroy()

	require.True(t, cleaned, "destroying a parent must destroy its owned children")
}
