package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate       = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b|\b(19|20)\d{2}\b`)
	reEnrollment = regexp.MustCompile(`\b(enrol+ment|enroll|roll|registration|reg\.?)\s*(no|number)?\b`)
	reGradePoint = regexp.MustCompile(`\b(c|s)gpa\b|\bgrade\b`)
	reInstitute  = regexp.MustCompile(`\b(university|institute|college|board)\b`)
)

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	// boost if we see common certificate artifacts
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.15
	}
	if reEnrollment.MatchString(txtL) {
		score += 0.2
	}
	if reGradePoint.MatchString(txtL) {
		score += 0.15
	}
	if reInstitute.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights tesseract's own score higher when present.
func blendConfidence(ocrConf, heurConf float32) float32 {
	conf := heurConf
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
