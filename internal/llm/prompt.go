package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxPromptOCRChars bounds how much OCR text goes to the model.
const maxPromptOCRChars = 8000

// BuildExtractionPrompt composes the single user message for field extraction.
// It lists the canonical keys as a JSON template so the model mirrors the shape.
func BuildExtractionPrompt(ocrText string) string {
	text := clipOCRText(ocrText, maxPromptOCRChars)

	var b strings.Builder
	b.WriteString("You read OCR text from academic documents: degree certificates, mark sheets, grade cards and transcripts.\n")
	b.WriteString("Extract the fields below and reply with ONE JSON object that has exactly these keys:\n\n")
	b.WriteString("{\n")
	for i, k := range CanonicalKeys {
		sep := ","
		if i == len(CanonicalKeys)-1 {
			sep = ""
		}
		if k == KeySubjects {
			fmt.Fprintf(&b, "  %q: [{\"subject_code\": \"...\", \"subject_name\": \"...\", \"grade\": \"...\", \"credits\": \"...\"}]%s\n", k, sep)
			continue
		}
		fmt.Fprintf(&b, "  %q: \"...\"%s\n", k, sep)
	}
	b.WriteString("}\n\n")

	rules := []string{
		"Use null for any field that is not clearly present. Never guess.",
		"Copy names and enrollment or roll numbers exactly as printed, keeping letters and digits.",
		"certificate_type is a short label such as \"Degree Certificate\", \"Grade Card\" or \"Transcript\".",
		"Write grade points (cgpa, sgpa) and credits as plain numbers in strings, e.g. \"6.1\".",
		"Write every date (graduation_date, date_of_birth) as DD/MM/YYYY, e.g. \"15/06/2023\".",
		"subjects lists every subject row that is visible; use [] when there is no subject table.",
		"Reply with the JSON object only. No prose, no markdown fences.",
	}
	b.WriteString("Rules:\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}

	b.WriteString("\nOCR text:\n")
	b.WriteString(text)
	return b.String()
}

// BuildSummaryPrompt asks for a one-line synopsis of the non-null scalar fields.
func BuildSummaryPrompt(fields Fields) string {
	var b strings.Builder
	b.WriteString("Write a one-line summary (at most 200 characters) of this academic certificate.\n")
	b.WriteString("Order: keep this order: Name, Degree/Branch, University, Performance (CGPA or SGPA). Skip parts that are unknown.\n")
	b.WriteString("Dates: write any date as DD/MM/YYYY.\n")
	b.WriteString("Example: Prashant Singh - B.Tech CSE from Jaypee University (CGPA: 6.1)\n\n")
	b.WriteString("Fields:\n")
	for _, k := range CanonicalKeys {
		if k == KeySubjects {
			continue
		}
		v := fields.String(k)
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", titleKey(k), v)
	}
	b.WriteString("\nReply with the summary line only.")
	return b.String()
}

// clipOCRText cuts s to at most n bytes without splitting a UTF-8 sequence.
func clipOCRText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// titleKey turns "student_name" into "Student Name".
func titleKey(k string) string {
	parts := strings.Split(k, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
