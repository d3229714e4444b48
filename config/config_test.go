package config

import (
	"errors"
	"testing"

	"github.com/notargets/spectral/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	cfg := Default()
	assert.Equal(t, KindFast, cfg.Transforms.Resolve(Fourier, nil))
	assert.Equal(t, KindFast, cfg.Transforms.Resolve(Chebyshev, nil))
	assert.Equal(t, KindVandermonde, cfg.Transforms.Resolve(Legendre, nil))
	assert.Equal(t, KindVandermonde, cfg.Transforms.Resolve(Jacobi, nil))
	assert.NoError(t, cfg.Transforms.Validate())
}

func TestOverridesWin(t *testing.T) {
	tr := Default().Transforms
	k := tr.Resolve(Chebyshev, KindOverrides{Chebyshev: KindRecursive})
	assert.Equal(t, KindRecursive, k)
	// empty override falls through to the table
	k = tr.Resolve(Chebyshev, KindOverrides{Chebyshev: KindDefault})
	assert.Equal(t, KindFast, k)
}

func TestSetIsExplicit(t *testing.T) {
	defer Reset()
	snap := Current()
	snap.Transforms[Chebyshev] = KindVandermonde
	assert.Equal(t, KindFast, Current().Transforms[Chebyshev], "Current must return a copy")

	require.NoError(t, Set(snap))
	assert.Equal(t, KindVandermonde, Current().Transforms[Chebyshev])

	bad := Default()
	bad.Transforms[Jacobi] = KindFast
	bad.Transforms["hermite"] = KindFast
	err := Set(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
	assert.Contains(t, err.Error(), "hermite")
	assert.Contains(t, err.Error(), "jacobi")
}

func TestLoadYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/spectral.yaml", []byte(`
transforms:
  chebyshev: recursive
logging:
  level: debug
`), 0o644))
	cfg, err := Load(fs, "/etc/spectral.yaml")
	require.NoError(t, err)
	assert.Equal(t, KindRecursive, cfg.Transforms[Chebyshev])
	assert.Equal(t, KindFast, cfg.Transforms[Fourier])
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "spectral", cfg.Logging.Name)

	require.NoError(t, Save(fs, "/tmp/out.yaml", cfg))
	again, err := Load(fs, "/tmp/out.yaml")
	require.NoError(t, err)
	assert.Equal(t, cfg, again)

	_, err = Load(fs, "/missing.yaml")
	assert.Error(t, err)
}
