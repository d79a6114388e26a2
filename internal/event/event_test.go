package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinylib/msgp/msgp"
)

// topLevel walks an encoded Context and returns its keys in order along with
// whether each value was nil.
func topLevel(t *testing.T, b []byte) ([]string, map[string]bool) {
	t.Helper()
	n, b, err := msgp.ReadMapHeaderBytes(b)
	require.NoError(t, err)
	var keys []string
	nils := map[string]bool{}
	for i := uint32(0); i < n; i++ {
		var k string
		k, b, err = msgp.ReadStringBytes(b)
		require.NoError(t, err)
		keys = append(keys, k)
		nils[k] = msgp.IsNil(b)
		b, err = msgp.Skip(b)
		require.NoError(t, err)
	}
	assert.Empty(t, b, "trailing bytes")
	return keys, nils
}

func TestContext_KeyOrderAndNils(t *testing.T) {
	c := NewContext()
	b, err := c.MarshalMsg(nil)
	require.NoError(t, err)

	keys, nils := topLevel(t, b)
	assert.Equal(t, []string{
		"release", "level", "user", "dist", "environment",
		"transaction", "tags", "extra", "fingerprint",
	}, keys)

	for _, k := range []string{"release", "user", "dist", "environment", "transaction"} {
		assert.True(t, nils[k], "%s should be nil", k)
	}
	for _, k := range []string{"level", "tags", "extra", "fingerprint"} {
		assert.False(t, nils[k], "%s should not be nil", k)
	}
}

func TestContext_RoundTrip(t *testing.T) {
	c := NewContext()
	c.Release = String("app@1.2.3")
	c.Environment = String("")
	c.Level = LevelWarning
	c.SetUser(User{Email: "jane@example.com"})
	c.Tags["region"] = "eu"
	c.Extra["attempt"] = "3"
	c.Fingerprint = []string{"a", "b"}

	b, err := c.MarshalMsg(nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b), c.Msgsize())

	var got Context
	rest, err := got.UnmarshalMsg(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.True(t, c.Equal(&got), "got %+v", got)

	// Empty string survives as a value, distinct from absent.
	require.NotNil(t, got.Environment)
	assert.Equal(t, "", *got.Environment)
	assert.Nil(t, got.Dist)
	assert.Equal(t, map[string]string{UserEmail: "jane@example.com"}, got.User)
}

func TestContext_UnmarshalSkipsUnknownKeys(t *testing.T) {
	b := msgp.AppendMapHeader(nil, 3)
	b = msgp.AppendString(b, "level")
	b = msgp.AppendInt(b, int(LevelFatal))
	b = msgp.AppendString(b, "contexts")
	b = msgp.AppendArrayHeader(b, 2)
	b = msgp.AppendInt(b, 1)
	b = msgp.AppendString(b, "x")
	b = msgp.AppendString(b, "release")
	b = msgp.AppendString(b, "r1")

	var got Context
	_, err := got.UnmarshalMsg(b)
	require.NoError(t, err)
	assert.Equal(t, LevelFatal, got.Level)
	require.NotNil(t, got.Release)
	assert.Equal(t, "r1", *got.Release)
	assert.NotNil(t, got.Tags)
	assert.NotNil(t, got.Fingerprint)
}

func TestContext_UnmarshalTruncated(t *testing.T) {
	c := NewContext()
	c.Tags["k"] = "v"
	b, err := c.MarshalMsg(nil)
	require.NoError(t, err)

	var got Context
	_, err = got.UnmarshalMsg(b[:len(b)-3])
	assert.Error(t, err)
}

func TestBreadcrumb_Encoding(t *testing.T) {
	bc := Breadcrumb{Message: String("clicked save")}
	b, err := bc.MarshalMsg(nil)
	require.NoError(t, err)

	n, rest, err := msgp.ReadMapHeaderBytes(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)

	var got Breadcrumb
	rest, err = got.UnmarshalMsg(b)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.NotNil(t, got.Message)
	assert.Equal(t, "clicked save", *got.Message)
	assert.Nil(t, got.Level)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
		" fatal ": LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		if in == "debug" {
			assert.Equal(t, "debug", got.String())
		}
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestClone_IsDeep(t *testing.T) {
	c := NewContext()
	c.Release = String("r1")
	c.Tags["a"] = "1"
	c.Fingerprint = []string{"x"}

	cp := c.Clone()
	*c.Release = "r2"
	c.Tags["a"] = "2"
	c.Fingerprint[0] = "y"

	assert.Equal(t, "r1", *cp.Release)
	assert.Equal(t, "1", cp.Tags["a"])
	assert.Equal(t, []string{"x"}, cp.Fingerprint)
}
