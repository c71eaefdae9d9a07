package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheapConfig keeps tests fast; production parameters come from DefaultConfig.
func cheapConfig() Config {
	return Config{
		Memory:      minMemoryKB,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	require.NoError(t, err)
	return h
}

func TestHashEncodesPHCAndVerifies(t *testing.T) {
	h := newHasher(t, cheapConfig())

	hash, err := h.Hash("media-admin-passphrase")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)

	ok, err := h.Verify("media-admin-passphrase", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("media-admin-passphrasE", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSaltsEveryCall(t *testing.T) {
	h := newHasher(t, cheapConfig())
	a, err := h.Hash("same-input-twice")
	require.NoError(t, err)
	b, err := h.Hash("same-input-twice")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashLengthBounds(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxPasswordBytes = 64
	h := newHasher(t, cfg)

	cases := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrPasswordTooShort},
		{name: "under minimum", input: "short", wantErr: ErrPasswordTooShort},
		{name: "at minimum", input: strings.Repeat("m", minPassBytes)},
		{name: "at cap", input: strings.Repeat("c", 64)},
		{name: "over cap", input: strings.Repeat("c", 65), wantErr: ErrPasswordTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Hash(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifyRejectsOversizedInputBeforeWork(t *testing.T) {
	cfg := cheapConfig()
	cfg.MaxPasswordBytes = 64
	h := newHasher(t, cfg)

	hash, err := h.Hash("ordinary-password")
	require.NoError(t, err)

	_, err = h.Verify(strings.Repeat("x", 65), hash)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestDefaultMaxPasswordBytes(t *testing.T) {
	h := newHasher(t, cheapConfig())

	_, err := h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes))
	assert.NoError(t, err)
	_, err = h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerifyMalformedHashes(t *testing.T) {
	h := newHasher(t, cheapConfig())
	good, err := h.Hash("version-check-input")
	require.NoError(t, err)

	for name, encoded := range map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong version": strings.Replace(good, "$v=19$", "$v=18$", 1),
		"weak params":   "$argon2id$v=19$m=1,t=1,p=1$AAAA$AAAA",
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuv",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.Verify("version-check-input", encoded)
			assert.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newHasher(t, cheapConfig())
	hash, err := weak.Hash("upgrade-candidate")
	require.NoError(t, err)

	stronger := cheapConfig()
	stronger.Time = 2
	up, err := newHasher(t, stronger).NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.True(t, up, "higher time cost must trigger a rehash")

	same, err := weak.NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = minMemoryKB - 1 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"max bytes":   func(c *Config) { c.MaxPasswordBytes = 4 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := cheapConfig()
			mutate(&cfg)
			_, err := NewArgon2(cfg)
			assert.Error(t, err)
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	_, err := NewArgon2(DefaultConfig())
	require.NoError(t, err)
}
