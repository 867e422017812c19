package ai

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mcqscan/question"
)

// BlockTerminator ends every question block in extraction output
const BlockTerminator = "===END==="

// Field identifies a labelled line inside a question block
type Field int

const (
	FieldTopic Field = iota
	FieldNumber
	FieldText
	FieldOptionA
	FieldOptionB
	FieldOptionC
	FieldOptionD
	FieldAnswer
	FieldReference
)

func (f Field) String() string {
	for _, p := range linePrefixes {
		if p.field == f {
			return strings.TrimSuffix(p.prefix, ":")
		}
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// linePrefixes are tried in order; the first prefix a line starts with wins
var linePrefixes = []struct {
	prefix string
	field  Field
}{
	{"TOPIC:", FieldTopic},
	{"Q_NUM:", FieldNumber},
	{"Q_TEXT:", FieldText},
	{"OPT_A:", FieldOptionA},
	{"OPT_B:", FieldOptionB},
	{"OPT_C:", FieldOptionC},
	{"OPT_D:", FieldOptionD},
	{"ANS:", FieldAnswer},
	{"REF:", FieldReference},
}

var requiredFields = []Field{
	FieldNumber, FieldText, FieldOptionA, FieldOptionB, FieldOptionC, FieldOptionD, FieldAnswer,
}

// ErrIncompleteBlock is returned for a block missing a required field
var ErrIncompleteBlock = errors.New("incomplete question block")

// Fields is the tagged-field mapping of one block. A later line with the
// same prefix replaces an earlier one.
type Fields map[Field]string

// TokenizeBlock maps each recognised line of a block to its field.
// Unrecognised lines are ignored.
func TokenizeBlock(block string) Fields {
	fields := make(Fields)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		for _, p := range linePrefixes {
			if strings.HasPrefix(line, p.prefix) {
				fields[p.field] = strings.TrimSpace(strings.TrimPrefix(line, p.prefix))
				break
			}
		}
	}
	return fields
}

// Block is one raw question block with its fields resolved
type Block struct {
	Index     int // 1-based position in the extraction output
	Topic     string
	Number    string
	Text      string
	Options   [4]string
	Answer    string
	Reference string
}

// SplitBlocks splits extraction output on the terminator. The returned
// slice keeps blank segments so block indexes match the raw output.
func SplitBlocks(raw string) []string {
	return strings.Split(raw, BlockTerminator)
}

// ParseBlock resolves a block's fields. It fails with ErrIncompleteBlock
// when number, text, any option or the answer is missing.
func ParseBlock(index int, text string) (Block, error) {
	fields := TokenizeBlock(text)

	var missing []string
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		return Block{}, fmt.Errorf("%w %d: missing %s", ErrIncompleteBlock, index, strings.Join(missing, ", "))
	}

	ref, ok := fields[FieldReference]
	if !ok {
		ref = question.NoReference
	}

	return Block{
		Index:  index,
		Topic:  fields[FieldTopic],
		Number: fields[FieldNumber],
		Text:   fields[FieldText],
		Options: [4]string{
			fields[FieldOptionA],
			fields[FieldOptionB],
			fields[FieldOptionC],
			fields[FieldOptionD],
		},
		Answer:    normalizeAnswer(fields[FieldAnswer]),
		Reference: ref,
	}, nil
}

// normalizeAnswer lowercases the answer and keeps its first character.
// An empty answer becomes "a". The letter is not checked against a-d.
func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "a"
	}
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// OptionList returns the block's options keyed a-d
func (b Block) OptionList() []question.Option {
	opts := make([]question.Option, len(question.OptionKeys))
	for i, key := range question.OptionKeys {
		opts[i] = question.Option{Key: key, Text: b.Options[i]}
	}
	return opts
}
