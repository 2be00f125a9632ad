package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type weatherArgs struct {
	Location string   `json:"location" description:"City name"`
	Units    string   `json:"units,omitempty" enum:"celsius, fahrenheit"`
	Days     *int     `json:"days" description:"Optional pointer field"`
	Tags     []string `json:"tags,omitempty"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(weatherArgs{})

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "location")
	assert.Contains(t, props, "days")

	units := props["units"].(map[string]any)
	assert.Equal(t, []string{"celsius", "fahrenheit"}, units["enum"])

	tags := props["tags"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])

	assert.Equal(t, []string{"location"}, schema["required"])
}

func TestCreateSchema_NonStruct(t *testing.T) {
	schema := CreateSchema(42)
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "required")
}

func TestCompileSchemaValidates(t *testing.T) {
	compiled, err := CompileSchema("get_weather", CreateSchema(weatherArgs{}))
	require.NoError(t, err)

	ok, err := NormalizeArgs(map[string]any{"location": "Beijing", "units": "celsius", "days": 3})
	require.NoError(t, err)
	assert.NoError(t, compiled.Validate(ok))

	badEnum, _ := NormalizeArgs(map[string]any{"location": "Beijing", "units": "kelvin"})
	assert.Error(t, compiled.Validate(badEnum))

	missing, _ := NormalizeArgs(map[string]any{"units": "celsius"})
	assert.Error(t, compiled.Validate(missing))
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = ParseArgs(`{"location":"Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, "Paris", args["location"])

	_, err = ParseArgs(`{broken`)
	assert.Error(t, err)
}
