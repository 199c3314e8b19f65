package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ContentKind enumerates the closed set of turn payload variants.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolResult ContentKind = "tool_result"
)

// Content is the payload of a turn. It is a tagged union: Kind selects which
// of the remaining fields are meaningful. Unknown kinds are rejected at the
// boundary by Normalize rather than probed for ad hoc.
type Content struct {
	Kind       ContentKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	ToolName   string      `json:"tool_name,omitempty"`
	ToolResult string      `json:"tool_result,omitempty"`
}

// TextContent builds a plain text payload.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// ToolResultContent builds a serialized tool-result payload.
func ToolResultContent(toolName, result string) Content {
	return Content{Kind: ContentToolResult, ToolName: toolName, ToolResult: result}
}

// Normalize validates a payload coming from an external boundary. A missing
// kind with text present is coerced to a text payload; anything else unknown
// is an error.
func Normalize(c Content) (Content, error) {
	switch c.Kind {
	case ContentText:
		return c, nil
	case ContentToolResult:
		if c.ToolName == "" {
			return Content{}, fmt.Errorf("tool_result content requires tool_name")
		}
		return c, nil
	case "":
		if c.Text != "" {
			c.Kind = ContentText
			return c, nil
		}
		return Content{}, fmt.Errorf("content kind is required")
	default:
		return Content{}, fmt.Errorf("unknown content kind: %q", c.Kind)
	}
}

// ValidateTurn normalizes a turn at the persistence boundary. Unknown roles
// and out-of-union content are rejected; a bare-text payload is coerced to
// the text kind. Every Append implementation runs incoming turns through it.
func ValidateTurn(t Turn) (Turn, error) {
	if !ValidRole(t.Role) {
		return Turn{}, fmt.Errorf("unknown turn role: %q", t.Role)
	}
	c, err := Normalize(t.Content)
	if err != nil {
		return Turn{}, err
	}
	t.Content = c
	return t, nil
}

// PromptText flattens the payload to the text form sent to the model.
func (c Content) PromptText() string {
	switch c.Kind {
	case ContentToolResult:
		return fmt.Sprintf("[%s] %s", c.ToolName, c.ToolResult)
	default:
		return c.Text
	}
}

// Value implements driver.Valuer, storing the payload as JSONB.
func (c Content) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (c *Content) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = Content{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Content", src)
	}
}
