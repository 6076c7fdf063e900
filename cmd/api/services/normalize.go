package services

import (
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	DefaultLanguage      = "AZ"
	DefaultStatus        = "Active"
	DefaultPublishStatus = "Publish"
	DefaultAuthor        = "admin"

	descriptionLimit = 160

	createdAtLayout   = "2006-01-02T15:04:05.000Z"
	sharingTimeLayout = "02/01/2006"
	sharingHourLayout = "03:04 PM"
)

// DeriveDescription turns htmlContent into plain text: every tag, comment and doctype
// becomes a space, whitespace collapses, and text past 160 characters is cut with "...".
// Text is kept as written, so entities stay encoded.
func DeriveDescription(content string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return truncateDescription(b.String())
		case html.TextToken:
			b.Write(z.Raw())
		default:
			b.WriteByte(' ')
		}
	}
}

func truncateDescription(s string) string {
	text := strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(text) <= descriptionLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:descriptionLimit]) + "..."
}

// FormatCreatedAt renders t like JavaScript's toISOString.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}

// SharingTime renders the display date as dd/mm/yyyy in loc.
func SharingTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(sharingTimeLayout)
}

// SharingHour renders the display time as hh:mm AM/PM in loc.
func SharingHour(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(sharingHourLayout)
}

// orDefault returns def for blank values.
func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
