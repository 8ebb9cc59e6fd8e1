package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(readerFrom("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(readerFrom("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(readerFrom(""), "Name?", &out)
	assert.Error(t, err)
}

func stubTerminal(t *testing.T, term bool, read func(int) ([]byte, error)) {
	t.Helper()
	origTerm, origRead := isTerminal, readPassword
	isTerminal = func(int) bool { return term }
	readPassword = read
	t.Cleanup(func() {
		isTerminal, readPassword = origTerm, origRead
	})
}

func TestGetSecret_Terminal(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) { return []byte("hidden"), nil })

	var out bytes.Buffer
	got, err := GetSecret(readerFrom("ignored\n"), "Enter password", &out)
	require.NoError(t, err)
	assert.Equal(t, "hidden", string(got))
	assert.Equal(t, "Enter password: \n", out.String())
}

func TestGetSecret_TerminalError(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) { return nil, errors.New("boom") })

	var out bytes.Buffer
	_, err := GetSecret(readerFrom(""), "Enter password", &out)
	assert.Error(t, err)
}

func TestGetSecret_Piped(t *testing.T) {
	stubTerminal(t, false, func(int) ([]byte, error) {
		t.Fatal("terminal read on piped input")
		return nil, nil
	})

	var out bytes.Buffer
	got, err := GetSecret(readerFrom("from-pipe\n"), "Enter password", &out)
	require.NoError(t, err)
	assert.Equal(t, "from-pipe", string(got))
}

func TestGetOptional(t *testing.T) {
	var out bytes.Buffer

	v, err := GetOptional(readerFrom("\n"), "Company", "Acme", &out)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = GetOptional(readerFrom("Globex\n"), "Company", "Acme", &out)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Globex", *v)
	assert.Contains(t, out.String(), "Company [Acme]")
}
