package validator

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagSessionID    = "sessionid"    // UUID, any case
	TagQuestion     = "question"     // Trimmed length >= MinQuestionLength
	TagSafeFilename = "safefilename" // No path components, allowed extension
)

// MinQuestionLength is the minimum trimmed length of a question.
const MinQuestionLength = 3

// AllowedExtensions lists the upload extensions accepted by the service.
var AllowedExtensions = map[string]struct{}{
	"pdf": {}, "jpg": {}, "jpeg": {}, "png": {}, "bmp": {}, "gif": {}, "tiff": {}, "tif": {},
}

var (
	sessionIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	// \b is ASCII-only in RE2, so keywords glued to non-ASCII letters
	// ("éSELECT") are still stripped.
	sqlWordRegex   = regexp.MustCompile(`(?i)\b(UNION|SELECT|INSERT|UPDATE|DELETE|DROP|CREATE)\b`)
	sqlCharsRegex  = regexp.MustCompile(`(--|;|'|"|\*)`)
)

// registerCustomRules registers all custom validation rules.
func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagSessionID, func(fl validator.FieldLevel) bool {
		return IsSessionID(fl.Field().String())
	})
	_ = v.validate.RegisterValidation(TagQuestion, func(fl validator.FieldLevel) bool {
		return IsQuestion(fl.Field().String(), MinQuestionLength)
	})
	_ = v.validate.RegisterValidation(TagSafeFilename, func(fl validator.FieldLevel) bool {
		return IsSafeFilename(fl.Field().String())
	})
}

// IsSessionID reports whether id looks like a UUID, ignoring case.
func IsSessionID(id string) bool {
	return sessionIDRegex.MatchString(strings.ToLower(id))
}

// NormalizeSessionID lower-cases id so upper-case UUIDs resolve to the
// stored session.
func NormalizeSessionID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsQuestion reports whether the trimmed question has at least minLen characters.
func IsQuestion(q string, minLen int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= minLen
}

// IsSafeFilename rejects path traversal and extensions outside AllowedExtensions.
func IsSafeFilename(name string) bool {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return false
	}
	_, ok := AllowedExtensions[strings.ToLower(name[idx+1:])]
	return ok
}

// SanitizeInput strips NUL bytes and SQL-looking tokens from user text and
// truncates it to maxLen runes.
func SanitizeInput(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen])
	}
	text = sqlWordRegex.ReplaceAllString(text, "")
	text = sqlCharsRegex.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
