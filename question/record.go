// Package question holds the output record types for extracted MCQs.
package question

import "strings"

const (
	// NoReference marks a question whose source reference was not printed
	NoReference = "NREF"

	DifficultyEasyMedium = "easy-medium"
	DifficultyMediumHard = "medium-hard"

	// AnswerPrefix opens every short explanation ("Correct answer: ")
	AnswerPrefix = "সঠিক উত্তর: "
)

// BaseTags are attached to every record before the topic tag
var BaseTags = []string{"MCQ", "Mathematics", "Higher_Math", "HSC"}

// OptionKeys are the option letters of every record, in order
var OptionKeys = []string{"a", "b", "c", "d"}

// Option is one answer choice
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Record is one structured question as written to the per-image and merged files
type Record struct {
	ID                 string         `json:"id"`
	Context            map[string]any `json:"context"`
	QuestionText       string         `json:"question_text"`
	Options            []Option       `json:"options"`
	CorrectAnswerKey   string         `json:"correct_answer_key"`
	Reference          string         `json:"reference"`
	Tags               []string       `json:"tags"`
	Difficulty         string         `json:"difficulty"`
	IsGenerated        bool           `json:"is_generated"`
	OriginalQuestionID *string        `json:"original_question_id"`
	Explanation        *Explanation   `json:"explanation"`
}

// Explanation is the generated teaching material for a record
type Explanation struct {
	Short                string `json:"short"`
	Detailed             string `json:"detailed"`
	MathematicalDeriv    string `json:"mathematical_derivation"`
	KeyConcept           string `json:"key_concept"`
	CommonMistakes       string `json:"common_mistakes"`
	RealWorldApplication string `json:"real_world_application"`
	MemoryTip            string `json:"memory_tip"`
}

// ExplanationFields are the JSON keys an explanation must carry
var ExplanationFields = []string{
	"short",
	"detailed",
	"mathematical_derivation",
	"key_concept",
	"common_mistakes",
	"real_world_application",
	"memory_tip",
}

// ShortPrefix returns the prefix the short explanation must start with
func ShortPrefix(answer string) string {
	return AnswerPrefix + strings.ToUpper(answer)
}

// mathMarkers flag a question as medium-hard
var mathMarkers = []string{
	"$", "^", "frac", "theta", "Delta", "int", "lim", "sum", "sqrt",
	`\frac`, `\theta`, `\Delta`, `\int`, `\lim`, `\sum`, `\sqrt`,
}

// Difficulty classifies question text by whether it carries math notation
func Difficulty(text string) string {
	for _, m := range mathMarkers {
		if strings.Contains(text, m) {
			return DifficultyMediumHard
		}
	}
	return DifficultyEasyMedium
}

// TopicTag turns a translated topic label into a tag
func TopicTag(label string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(label)
}

// Tags returns the base tags plus the topic tag, when there is a topic
func Tags(topicLabel string) []string {
	tags := append([]string(nil), BaseTags...)
	if topicLabel != "" {
		tags = append(tags, TopicTag(topicLabel))
	}
	return tags
}

// ID builds a record id from the page base id and the printed number
func ID(baseID, number string) string {
	return baseID + "_" + strings.ReplaceAll(number, ".", "")
}
