// Package texttool implements the text manipulation tools exposed by the server
package texttool

import (
	"github.com/pcurtin/mcp-texttools/pkg/protocol"
)

// Kind identifies one of the built-in text tools. The set is closed: every
// kind is declared here and resolved through the static catalog, never
// registered at runtime.
type Kind int

const (
	KindReverse Kind = iota
	KindUppercase
	KindLowercase
	KindWordCount
	KindCharacterCount
	KindShuffle
)

// Tool names as advertised to clients
const (
	NameReverse        = "reverse_text"
	NameUppercase      = "uppercase_text"
	NameLowercase      = "lowercase_text"
	NameWordCount      = "word_count"
	NameCharacterCount = "character_count"
	NameShuffle        = "shuffle_text"
)

// Definition describes a single tool: its kind, advertised name and
// description, and the description of its text parameter.
type Definition struct {
	Kind            Kind
	Name            string
	Description     string
	TextDescription string
}

// InputSchema returns the JSON schema advertised for the tool. Every tool
// accepts an object with a single required `text` string property.
func (d Definition) InputSchema() *protocol.JSONSchema {
	return protocol.ObjectSchema(map[string]*protocol.JSONSchema{
		"text": protocol.StringSchema(d.TextDescription),
	}, []string{"text"})
}

// Catalog returns the definitions of all built-in tools in registration
// order. The slice is freshly allocated on every call; the set itself is
// fixed at compile time.
func Catalog() []Definition {
	return []Definition{
		{
			Kind:            KindReverse,
			Name:            NameReverse,
			Description:     "Reverses the characters of the provided text",
			TextDescription: "The text to reverse",
		},
		{
			Kind:            KindUppercase,
			Name:            NameUppercase,
			Description:     "Converts the provided text to upper case",
			TextDescription: "The text to convert",
		},
		{
			Kind:            KindLowercase,
			Name:            NameLowercase,
			Description:     "Converts the provided text to lower case",
			TextDescription: "The text to convert",
		},
		{
			Kind:            KindWordCount,
			Name:            NameWordCount,
			Description:     "Counts the words in the provided text",
			TextDescription: "The text to count words in",
		},
		{
			Kind:            KindCharacterCount,
			Name:            NameCharacterCount,
			Description:     "Counts the characters in the provided text, with and without spaces",
			TextDescription: "The text to count characters in",
		},
		{
			Kind:            KindShuffle,
			Name:            NameShuffle,
			Description:     "Randomly shuffles the characters of the provided text",
			TextDescription: "The text to shuffle",
		},
	}
}
