package helper

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRunID(t *testing.T) {
	first, err := GenerateRunID()
	require.NoError(t, err)
	second, err := GenerateRunID()
	require.NoError(t, err)

	_, err = uuid.Parse(first)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"new": 3})
	assert.Equal(t, "{\n  \"new\": 3\n}\n", buf.String())
}

func TestPrettyPrint_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, make(chan int))
	assert.Empty(t, buf.String())
}
