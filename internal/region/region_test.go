package region

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	name, err := Lookup("US")
	require.NoError(t, err)
	assert.Equal(t, "United States of America", name)

	name, err = Lookup(" ad ")
	require.NoError(t, err)
	assert.Equal(t, "Andorra", name)

	_, err = Lookup("ZZ")
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestCodesCoverTable(t *testing.T) {
	codes := Codes()
	assert.Len(t, codes, 247)
	assert.IsIncreasing(t, codes)
}

func TestDefaultResolvableAreKnown(t *testing.T) {
	codes := DefaultResolvable()
	require.Len(t, codes, 181)
	for _, c := range codes {
		_, err := Lookup(c)
		assert.NoError(t, err, c)
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"US", "GB", "FR"}, ParseList("us, GB,,fr,us"))
	assert.Empty(t, ParseList(""))
}

func TestProbePartitionsEveryCode(t *testing.T) {
	codes := []string{"AD", "AF", "US", "KP"}
	failing := map[string]bool{"AF": true, "KP": true}

	p, err := Probe(context.Background(), codes, func(_ context.Context, code string) error {
		if failing[code] {
			return errors.New("no featured playlist")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AD", "US"}, p.Resolvable)
	assert.Equal(t, []string{"AF", "KP"}, p.Unresolvable)
	assert.Len(t, append(p.Resolvable, p.Unresolvable...), len(codes))
}

func TestProbeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Probe(ctx, []string{"AD", "US"}, func(_ context.Context, _ string) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
