package texttool

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/pcurtin/mcp-texttools/internal/errors"
)

// Envelope layouts serialized into the text content of every tool result.
// Result is interface-typed because word_count reports a number where the
// transforming tools report a string; none of the fields are omitempty so an
// empty-string result still appears in the payload.

type successEnvelope struct {
	Success     bool        `json:"success"`
	Tool        string      `json:"tool"`
	InputLength int         `json:"input_length"`
	Result      interface{} `json:"result"`
}

type characterCountEnvelope struct {
	Success                 bool   `json:"success"`
	Tool                    string `json:"tool"`
	TotalCharacters         int    `json:"total_characters"`
	CharactersWithoutSpaces int    `json:"characters_without_spaces"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Tool    string `json:"tool"`
	Error   string `json:"error"`
}

// successPayload serializes the standard success envelope. input_length is
// the rune count of the original input, not of the result.
func successPayload(tool string, input string, result interface{}) (string, error) {
	env := successEnvelope{
		Success:     true,
		Tool:        tool,
		InputLength: utf8.RuneCountInString(input),
		Result:      result,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", errors.NewErrorf(errors.InternalFault, "encoding result for tool %s", tool).WithCause(err)
	}
	return string(data), nil
}

// characterCountPayload serializes the character_count envelope, which
// carries the two counts instead of input_length and result.
func characterCountPayload(tool string, total, withoutSpaces int) (string, error) {
	env := characterCountEnvelope{
		Success:                 true,
		Tool:                    tool,
		TotalCharacters:         total,
		CharactersWithoutSpaces: withoutSpaces,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return "", errors.NewErrorf(errors.InternalFault, "encoding result for tool %s", tool).WithCause(err)
	}
	return string(data), nil
}

// errorPayload serializes the failure envelope. Coded errors contribute
// their bare message; the [code] prefix stays out of client-visible text.
func errorPayload(tool string, err error) string {
	message := err.Error()
	var coded *errors.Error
	if errors.As(err, &coded) {
		message = coded.Message
	}

	env := errorEnvelope{
		Success: false,
		Tool:    tool,
		Error:   message,
	}

	data, _ := json.Marshal(env)
	return string(data)
}
