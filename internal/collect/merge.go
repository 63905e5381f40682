package collect

import "strings"

// Merge concatenates outcomes in the order given and drops duplicates.
// The first occurrence wins. Two events are the same story when their source
// URLs match case-insensitively, or when their title and source name both
// match case-insensitively (syndicated copies under a different URL).
func Merge(outcomes []Outcome) []RawEvent {
	seenURL := make(map[string]struct{})
	seenTitle := make(map[string]struct{})
	var merged []RawEvent

	for _, o := range outcomes {
		for _, ev := range o.Events {
			if !IsValidURL(ev.SourceURL) {
				continue
			}
			title := mergeTitle(ev)
			if title == "" {
				continue
			}

			urlKey := URLKey(ev.SourceURL)
			if _, dup := seenURL[urlKey]; dup {
				continue
			}
			titleKey := HeadlineKey(title) + "::" + strings.ToLower(strings.TrimSpace(ev.SourceName))
			if _, dup := seenTitle[titleKey]; dup {
				continue
			}

			seenURL[urlKey] = struct{}{}
			seenTitle[titleKey] = struct{}{}
			merged = append(merged, ev)
		}
	}
	return merged
}

func mergeTitle(ev RawEvent) string {
	if t := strings.TrimSpace(ev.Title); t != "" {
		return t
	}
	return strings.TrimSpace(ev.Headline)
}
