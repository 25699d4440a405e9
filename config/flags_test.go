package config

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverridesFlag(t *testing.T) {
	var o Overrides
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(&o, "cfg-options", "")
	require.NoError(t, fs.Parse([]string{"--cfg-options", "a.b=1 c=[1,2]", "--cfg-options=d=x"}))
	assert.Equal(t, Overrides{"a.b=1", "c=[1,2]", "d=x"}, o)
	assert.Equal(t, "a.b=1 c=[1,2] d=x", o.String())
	assert.Error(t, fs.Parse([]string{"--cfg-options", "broken"}))
}
