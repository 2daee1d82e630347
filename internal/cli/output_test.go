package cli

import (
	"bytes"
	"testing"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFormat(t *testing.T) {
	assert.NoError(t, checkFormat("json", FormatJSON, FormatYAML))

	err := checkFormat("table", FormatJSON, FormatYAML)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "Use one of: json, yaml")
}

func TestWriteStructured(t *testing.T) {
	v := map[string]string{"dut_id": "eve_NXAB12"}

	var js bytes.Buffer
	require.NoError(t, writeStructured(&js, FormatJSON, v))
	assert.Equal(t, "{\n  \"dut_id\": \"eve_NXAB12\"\n}\n", js.String())

	var y bytes.Buffer
	require.NoError(t, writeStructured(&y, FormatYAML, v))
	assert.Equal(t, "dut_id: eve_NXAB12\n", y.String())
}
