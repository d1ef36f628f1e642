package attacher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAppliesDefaultRlimit(t *testing.T) {
	o := Options{}
	require.NoError(t, o.Validate())
	assert.Equal(t, uint64(defaultMaxFilenoRlimit), o.MaxFilenoRlimit)
}

func TestValidateKeepsExplicitRlimit(t *testing.T) {
	o := Options{MaxFilenoRlimit: 42}
	require.NoError(t, o.Validate())
	assert.Equal(t, uint64(42), o.MaxFilenoRlimit)
}

func TestValidateDebugImpliesVerbose(t *testing.T) {
	o := Options{Debug: true}
	require.NoError(t, o.Validate())
	assert.True(t, o.Verbose)
}

func TestValidateDebugExtraImpliesDebug(t *testing.T) {
	o := Options{DebugExtra: true}
	require.NoError(t, o.Validate())
	assert.True(t, o.Debug)
	assert.True(t, o.Verbose)
}

func TestValidateRejectsNegativeMaxFuncCnt(t *testing.T) {
	o := Options{MaxFuncCnt: -1}
	err := o.Validate()
	require.Error(t, err)
}
