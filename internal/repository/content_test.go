package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentValueScanRoundTrip(t *testing.T) {
	original := ToolResultContent("search", `{"hits":3}`)

	v, err := original.Value()
	require.NoError(t, err)

	var restored Content
	require.NoError(t, restored.Scan(v))

	assert.Equal(t, original, restored)
}

func TestNormalizeText(t *testing.T) {
	c, err := Normalize(Content{Kind: ContentText, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ContentText, c.Kind)
}

func TestNormalizeCoercesBareText(t *testing.T) {
	c, err := Normalize(Content{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ContentText, c.Kind)
	assert.Equal(t, "hi", c.Text)
}

func TestNormalizeRejectsUnknownKind(t *testing.T) {
	_, err := Normalize(Content{Kind: "image", Text: "x"})
	assert.Error(t, err)
}

func TestNormalizeRejectsToolResultWithoutName(t *testing.T) {
	_, err := Normalize(Content{Kind: ContentToolResult, ToolResult: "x"})
	assert.Error(t, err)
}

func TestValidateTurnAcceptsTextTurn(t *testing.T) {
	in := Turn{SessionID: "s1", Role: RoleUser, Content: TextContent("hi")}

	out, err := ValidateTurn(in)
	require.NoError(t, err)
	assert.Equal(t, ContentText, out.Content.Kind)
	assert.Equal(t, "hi", out.Content.Text)
}

func TestValidateTurnCoercesBareText(t *testing.T) {
	in := Turn{SessionID: "s1", Role: RoleUser, Content: Content{Text: "hi"}}

	out, err := ValidateTurn(in)
	require.NoError(t, err)
	assert.Equal(t, ContentText, out.Content.Kind)
}

func TestValidateTurnRejectsUnknownContentKind(t *testing.T) {
	in := Turn{SessionID: "s1", Role: RoleUser, Content: Content{Kind: "image", Text: "x"}}

	_, err := ValidateTurn(in)
	assert.Error(t, err)
}

func TestValidateTurnRejectsUnknownRole(t *testing.T) {
	in := Turn{SessionID: "s1", Role: "moderator", Content: TextContent("hi")}

	_, err := ValidateTurn(in)
	assert.Error(t, err)
}

func TestPromptText(t *testing.T) {
	assert.Equal(t, "hi", TextContent("hi").PromptText())
	assert.Equal(t, "[search] 3 hits", ToolResultContent("search", "3 hits").PromptText())
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleSystem, RoleUser, RoleAssistant, RoleTool} {
		assert.True(t, ValidRole(role))
	}
	assert.False(t, ValidRole("moderator"))
}
