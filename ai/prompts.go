package ai

import (
	"fmt"
	"strings"

	"mcqscan/question"
)

// ExtractionPrompt builds the page extraction prompt. The topic context
// paragraph is included only when both previous labels are known.
func ExtractionPrompt(prevSource, prevTranslated string) string {
	var sb strings.Builder

	sb.WriteString("আপনি একজন উচ্চতর গণিত MCQ বিশেষজ্ঞ। এই ইমেজ থেকে সমস্ত প্রশ্ন নিখুঁত নির্ভুলতার সাথে সংগ্রহ করুন।\n\n")

	if prevSource != "" && prevTranslated != "" {
		sb.WriteString("IMPORTANT TOPIC CONTEXT\n")
		sb.WriteString("The previous page ended with this topic:\n")
		sb.WriteString(fmt.Sprintf("- Bengali: %s\n", prevSource))
		sb.WriteString(fmt.Sprintf("- English: %s\n\n", prevTranslated))
		sb.WriteString("If this page does NOT start with a new \"Topic N:\" header at the very top, you MUST continue using this topic for ALL questions until you find a new topic header.\n\n")
	}

	sb.WriteString(`SPATIAL ORDERING (MANDATORY)
Extract questions in this exact order:
1. Start from the TOP-LEFT of the page.
2. Move DOWN through ALL items on the LEFT side (topics, questions, text).
3. Then move to the TOP-RIGHT of the page.
4. Move DOWN through ALL items on the RIGHT side.
This order (left column top to bottom, then right column top to bottom) decides which topic each question belongs to.

TOPIC DETECTION AND CONTINUATION
1. Headers look like "Topic [number]: [Bengali Text]" or "Topic [number] [Bengali Text]",
   e.g. "Topic 1: শর্টকাট টেকনিক", "Topic 2 ভেক্টর". Output ONLY the Bengali text as the topic.
2. A header becomes the CURRENT TOPIC for every question after it, in either column, until the next header.
3. If the page starts with questions (no header at the top), output "TOPIC: CONTINUE".
4. Use "TOPIC: সাধারণ" ONLY if no topic was provided and none is found on the page.

LATEX
ALL mathematical expressions MUST be LaTeX:
² -> $^2$, √x -> $\sqrt{x}$, 1/2 -> $\frac{1}{2}$, ∫ -> $\int$, A⁻¹ -> $A^{-1}$, A⃗ -> $\vec{A}$

QUESTION FORMATS
- Number: "01.", "02.", ...
- Text: Bengali or mixed, may span lines
- Options: inline "(A) text (B) text" or one per line; (A)/(a)/(ক), (B)/(b)/(খ), (C)/(c)/(গ), (D)/(d)/(ঘ)
- Answer: "ANS:(B)", "[Ans: b]" or "Solve ... ⊗ B"
- Reference: "[Ref: source]" or "[RU'19-20]"

OUTPUT FORMAT (one block per question):

TOPIC: [Bengali topic text OR "CONTINUE" OR "সাধারণ"]
Q_NUM: [number]
Q_TEXT: [full question text WITH LATEX]
OPT_A: [option a text WITH LATEX]
OPT_B: [option b text WITH LATEX]
OPT_C: [option c text WITH LATEX]
OPT_D: [option d text WITH LATEX]
ANS: [correct option letter: a/b/c/d]
REF: [reference/source if present, else 'NREF']
`)
	sb.WriteString(BlockTerminator)
	sb.WriteString("\n\nExtract ALL questions from this image with strict spatial ordering and topic tracking:\n")

	return sb.String()
}

// TranslationPrompt asks for the English name of a Bengali topic label
func TranslationPrompt(label string) string {
	return fmt.Sprintf(`Translate the following Bengali mathematics topic to English. Return ONLY the English translation, nothing else.

Bengali Topic: %s

Rules:
- Return ONLY the English translation
- Keep it concise and accurate
- Use proper mathematical terminology
- Example: "ম্যাট্রিক্সের মাত্রা বিশ্লেষণ" -> "Matrix Dimension Analysis"
- Example: "কৃষি বিশ্ববিদ্যালয় সমূহের বিগত বছরের প্রশ্ন ও সমাধান" -> "Agricultural University Past Questions & Solutions"
`, label)
}

// ExplanationPrompt asks for the seven-field explanation JSON
func ExplanationPrompt(text string, options []question.Option, answer string) string {
	var opts strings.Builder
	for i, o := range options {
		if i > 0 {
			opts.WriteString("\n")
		}
		opts.WriteString(fmt.Sprintf("%s) %s", o.Key, o.Text))
	}

	prefix := question.ShortPrefix(answer)

	return fmt.Sprintf(`আপনি একজন উচ্চতর গণিত শিক্ষক। নিচের প্রশ্নের জন্য বিস্তারিত ব্যাখ্যা তৈরি করুন।

প্রশ্ন: %s
অপশন:
%s

সঠিক উত্তর: %s

INSTRUCTIONS
1. ALL mathematical expressions MUST be LaTeX.
2. Use $...$ for inline math.
3. Return ONLY valid JSON, nothing else.
4. Do NOT include markdown code blocks or any text before/after the JSON.
5. Escape LaTeX backslashes properly (e.g. \\frac, \\sqrt).
6. START the short explanation with: "%s"

Return ONLY this JSON structure:

{
  "short": "%s - সংক্ষিপ্ত ব্যাখ্যা (২–৩ বাক্য) with LaTeX for all math",
  "detailed": "বিস্তারিত ব্যাখ্যা সূত্র এবং ধারণা সহ (minimum 4-5 sentences) with LaTeX",
  "mathematical_derivation": "গাণিতিক সূত্র, ডেরিভেশন বা প্রমাণ with LaTeX (or 'প্রযোজ্য নয়' if not applicable)",
  "key_concept": "এই প্রশ্নের মূল গাণিতিক ধারণা এবং নীতি (minimum 3-4 sentences)",
  "common_mistakes": "শিক্ষার্থীরা যে ভুল করে থাকে এবং কেন (minimum 3-4 sentences)",
  "real_world_application": "বাস্তব জীবনে বা উচ্চতর গণিতে এর প্রয়োগ (minimum 2-3 sentences)",
  "memory_tip": "সহজে মনে রাখার কৌশল বা সূত্র (minimum 2 sentences)"
}

Return ONLY the JSON object. No markdown, no code blocks, no extra text.
`, text, opts.String(), strings.ToUpper(answer), prefix, prefix)
}
