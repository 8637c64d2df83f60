package prefixspan

import (
	"strings"

	"github.com/stupid-db/stupid-db/pkg/entity"
)

// CompressionRule maps one event type to a short code, optionally
// suffixed with a truncated subtype field value.
type CompressionRule struct {
	Code         string
	SubtypeField string
}

// CompressEvent compresses a document's event type into a short code
// using the built-in scheme:
//
//   - Login → "L"
//   - GameOpened/GridClick → "G:<first 8 chars of game>" or "G"
//   - PopupModule → "P:<action>" or "P"
//   - API Error → "E:<statusCode>" or "E:<url tail>" or "E"
//   - anything else → first 3 characters of the event-type name
func CompressEvent(doc entity.Document) string {
	switch doc.EventType {
	case "Login":
		return "L"
	case "GameOpened", "GridClick":
		if game := firstField(doc, "game", "gameName"); game != "" {
			return "G:" + truncate(game, 8)
		}
		return "G"
	case "PopupModule", "PopUpModule":
		if action := firstField(doc, "action", "popupType"); action != "" {
			return "P:" + truncate(action, 8)
		}
		return "P"
	case "API Error":
		if code := doc.FieldString("statusCode"); code != "" {
			return "E:" + code
		}
		if url := doc.TextField("url"); url != "" {
			parts := strings.Split(url, "/")
			tail := parts[len(parts)-1]
			if tail == "" {
				tail = "unknown"
			}
			return "E:" + truncate(tail, 8)
		}
		return "E"
	default:
		return truncate(doc.EventType, 3)
	}
}

// CompressEventWithRules compresses an event using configured rules,
// falling back to the first 3 characters for unknown event types.
func CompressEventWithRules(doc entity.Document, rules map[string]CompressionRule) string {
	rule, ok := rules[doc.EventType]
	if !ok {
		return truncate(doc.EventType, 3)
	}
	if rule.SubtypeField != "" {
		if subtype := doc.TextField(rule.SubtypeField); subtype != "" {
			return rule.Code + ":" + truncate(subtype, 8)
		}
	}
	return rule.Code
}

func firstField(doc entity.Document, names ...string) string {
	for _, n := range names {
		if v := doc.TextField(n); v != "" {
			return v
		}
	}
	return ""
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
