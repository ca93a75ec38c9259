package sessions_test

import (
	"strings"
	"testing"

	apperrors "github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/sessions"
	fakestorage "github.com/jrsteele09/go-school-admin/sessions/repofakes"
	"github.com/stretchr/testify/require"
)

func TestSealedStorage_RoundTrip(t *testing.T) {
	inner := fakestorage.NewFakeStorage()
	sealed, err := sessions.NewSealedStorage(inner, "correct horse")
	require.NoError(t, err)

	require.NoError(t, sealed.Set("auth", `{"token":"T1"}`))

	raw, ok, err := inner.Get("auth")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(raw, "sealed.v1."))
	require.NotContains(t, raw, "T1")

	value, ok, err := sealed.Get("auth")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"token":"T1"}`, value)
}

func TestSealedStorage_NewInstanceSamePassphrase(t *testing.T) {
	inner := fakestorage.NewFakeStorage()
	first, err := sessions.NewSealedStorage(inner, "pass")
	require.NoError(t, err)
	require.NoError(t, first.Set("auth", "hello"))

	second, err := sessions.NewSealedStorage(inner, "pass")
	require.NoError(t, err)
	value, _, err := second.Get("auth")
	require.NoError(t, err)
	require.Equal(t, "hello", value)
}

func TestSealedStorage_Failures(t *testing.T) {
	inner := fakestorage.NewFakeStorage()
	sealed, err := sessions.NewSealedStorage(inner, "pass")
	require.NoError(t, err)
	require.NoError(t, sealed.Set("auth", "hello"))

	t.Run("wrong passphrase", func(t *testing.T) {
		other, err := sessions.NewSealedStorage(inner, "other")
		require.NoError(t, err)
		_, _, err = other.Get("auth")
		require.ErrorIs(t, err, apperrors.ErrSessionCorrupt)
	})

	t.Run("value moved to another key", func(t *testing.T) {
		raw, _, _ := inner.Get("auth")
		inner.Put("other", raw)
		_, _, err := sealed.Get("other")
		require.ErrorIs(t, err, apperrors.ErrSessionCorrupt)
	})

	t.Run("plain text value", func(t *testing.T) {
		inner.Put("plain", `{"token":"T1"}`)
		_, _, err := sealed.Get("plain")
		require.ErrorIs(t, err, apperrors.ErrSessionCorrupt)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := sealed.Get("missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("empty passphrase", func(t *testing.T) {
		_, err := sessions.NewSealedStorage(inner, "")
		require.Error(t, err)
	})
}

func TestSealedStorage_TamperedSessionLoadsEmpty(t *testing.T) {
	inner := fakestorage.NewFakeStorage()
	sealed, err := sessions.NewSealedStorage(inner, "pass")
	require.NoError(t, err)

	s := newTestStore(sealed)
	require.NoError(t, s.Login(testUser(), "T1", "R1"))
	require.Equal(t, "T1", newTestStore(sealed).Load().AccessToken)

	raw, _, _ := inner.Get(sessions.StorageKey)
	inner.Put(sessions.StorageKey, raw[:len(raw)-4]+"AAAA")

	require.True(t, newTestStore(sealed).Load().IsEmpty())
}
