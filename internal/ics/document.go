package ics

import (
	"strings"
	"unicode/utf8"
)

// ProductID identifies documents generated by this service.
const ProductID = "-//PowerChat//Meeting Capture//EN"

// ContentType is the MIME type served for generated documents.
const ContentType = "text/calendar; charset=utf-8"

// UTCLayout is the compact UTC form used for DTSTART/DTEND.
const UTCLayout = "20060102T150405Z"

const maxLineOctets = 75

// Document renders the event as a complete single-event calendar. DTSTAMP
// repeats DTSTART so the same event always renders to the same bytes.
func (e CalendarEvent) Document() string {
	start := e.Start.UTC().Format(UTCLayout)
	end := e.End.UTC().Format(UTCLayout)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:" + EscapeValue(e.UID),
		"DTSTAMP:" + start,
		"DTSTART:" + start,
		"DTEND:" + end,
		"SUMMARY:" + EscapeValue(e.Summary),
		"DESCRIPTION:" + EscapeValue(e.Description),
		"END:VEVENT",
		"END:VCALENDAR",
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(foldLine(line))
		sb.WriteString("\r\n")
	}
	return sb.String()
}

// EscapeValue escapes TEXT property values.
func EscapeValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return stripControl(s)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// foldLine splits a content line into 75-octet chunks, continuation lines
// starting with a single space. Multi-byte runes are never split.
func foldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line
	}
	var sb strings.Builder
	limit := maxLineOctets
	width := 0
	for len(line) > 0 {
		_, size := utf8.DecodeRuneInString(line)
		if width+size > limit {
			sb.WriteString("\r\n ")
			width = 0
			limit = maxLineOctets - 1
		}
		sb.WriteString(line[:size])
		width += size
		line = line[size:]
	}
	return sb.String()
}
