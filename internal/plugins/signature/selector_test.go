package signature

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funproject/fun/internal/plugin"
)

type memClipboard struct {
	texts []string
	err   error
}

func (c *memClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.texts = append(c.texts, text)
	return nil
}

type values map[string]string

func (v values) String(long string) (string, bool) {
	s, ok := v[long]
	return s, ok
}

func (v values) Bool(long string) bool { _, ok := v[long]; return ok }

func newTestSelector(t *testing.T) (*Selector, *memClipboard) {
	t.Helper()
	clip := &memClipboard{}
	s := New(WithClipboard(clip), WithSeed(1, 2))
	require.NoError(t, s.Init())
	return s, clip
}

func TestSelector_InitLoadsBuiltins(t *testing.T) {
	s, _ := newTestSelector(t)

	require.Equal(t, plugin.StateInitialized, s.State())
	require.True(t, s.IsReady())
	require.True(t, s.Validate())
	require.Len(t, s.loaded, 5)
	require.Len(t, s.weighted, 15)
}

func TestSelector_FreshIsNotValid(t *testing.T) {
	s := New(WithClipboard(&memClipboard{}))
	require.False(t, s.Validate())
	require.False(t, s.IsReady())
	require.Error(t, s.Start())
}

func TestSelector_PickCopiesToClipboard(t *testing.T) {
	s, clip := newTestSelector(t)
	require.NoError(t, s.Start())

	require.NoError(t, s.ExecuteAction(ActionPick))
	require.Len(t, clip.texts, 1)

	fields, err := s.DashboardData()
	require.NoError(t, err)
	require.Contains(t, fields, plugin.Field{Key: "Picks", Value: "1"})
	require.Contains(t, fields, plugin.Field{Key: "Last", Value: clip.texts[0]})
	require.Contains(t, fields, plugin.Field{Key: "Status", Value: "started"})
}

func TestSelector_WeightsDecidePool(t *testing.T) {
	s, clip := newTestSelector(t)
	doc := []byte(`
options:
  - signature: always
    tag: t
    weight: 1.0
  - signature: never
    tag: t
    weight: 0
`)
	require.NoError(t, s.Load(doc, "inline"))
	require.Len(t, s.weighted, 10)

	for i := 0; i < 20; i++ {
		_, err := s.Pick()
		require.NoError(t, err)
	}
	for _, text := range clip.texts {
		require.Equal(t, "always", text)
	}
}

func TestSelector_Errors(t *testing.T) {
	s, clip := newTestSelector(t)

	require.ErrorIs(t, s.ExecuteAction("explode"), plugin.ErrUnknownAction)

	clip.err = fmt.Errorf("%w: headless", plugin.ErrNotPermitted)
	require.ErrorIs(t, s.ExecuteAction(ActionPick), plugin.ErrNotPermitted)

	clip.err = errors.New("pipe closed")
	err := s.ExecuteAction(ActionPick)
	require.Error(t, err)
	require.NotErrorIs(t, err, plugin.ErrNotPermitted)
}

func TestSelector_EmptyPool(t *testing.T) {
	s := New(WithClipboard(&memClipboard{}))
	_, err := s.Pick()
	require.ErrorIs(t, err, ErrNoSignatures)

	require.ErrorIs(t, s.Load([]byte("options: []\n"), "empty"), ErrNoSignatures)
	require.Error(t, s.Load([]byte("options: [\n"), "broken"))
}

func TestSelector_ConfigureFromFile(t *testing.T) {
	s, clip := newTestSelector(t)
	path := filepath.Join(t.TempDir(), "mine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("options:\n  - signature: Mine\n    tag: own\n    weight: 0.2\n"), 0o600))

	require.NoError(t, s.Configure(values{"signatures": path}))
	_, err := s.Pick()
	require.NoError(t, err)
	require.Equal(t, []string{"Mine"}, clip.texts)

	require.NoError(t, s.Configure(values{}), "no flag keeps the current set")
	require.Error(t, s.Configure(values{"signatures": filepath.Join(t.TempDir(), "missing.yaml")}))
}
