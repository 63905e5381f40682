package collect

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// stripHTML returns the text content of an HTML fragment with whitespace
// collapsed. Entities are decoded by the tokenizer.
func stripHTML(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.Join(strings.Fields(text), " ")
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return strings.Join(strings.Fields(text), " ")
			}
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isInvisible(string(name)) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if name, _ := z.TagName(); isInvisible(string(name)) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isInvisible(tag string) bool {
	return tag == "script" || tag == "style"
}

// companyTerms returns the quoted search terms identifying the company.
func companyTerms(q Query) []string {
	var terms []string
	if name := q.Name(); len(name) >= minIdentityLen {
		terms = append(terms, `"`+strings.ReplaceAll(name, `"`, "")+`"`)
	}
	if domain := q.Domain(); len(domain) >= minIdentityLen {
		terms = append(terms, `"`+domain+`"`)
	}
	return terms
}

// keywordQuery builds "(company terms) AND (keyword OR ...)".
func keywordQuery(q Query, keywords []string) string {
	terms := companyTerms(q)
	if len(terms) == 0 {
		return ""
	}
	query := "(" + strings.Join(terms, " OR ") + ")"
	var kws []string
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			kws = append(kws, kw)
		}
	}
	if len(kws) > 0 {
		query += " AND (" + strings.Join(kws, " OR ") + ")"
	}
	return query
}

// hostMatches reports whether link points at domain or one of its subdomains.
func hostMatches(link, domain string) bool {
	if domain == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// mentionsCompany reports whether text names the company or its domain.
func mentionsCompany(text string, q Query) bool {
	text = strings.ToLower(text)
	if name := strings.ToLower(q.Name()); len(name) >= minIdentityLen && strings.Contains(text, name) {
		return true
	}
	if domain := q.Domain(); len(domain) >= minIdentityLen && strings.Contains(text, domain) {
		return true
	}
	return false
}

// domainStem returns "acme" for "acme.co.uk".
func domainStem(domain string) string {
	if i := strings.Index(domain, "."); i > 0 {
		return domain[:i]
	}
	return domain
}

// extractSourceName derives a display name from a feed URL.
func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds.", "news."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		return host
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
