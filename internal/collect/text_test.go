package collect

import "testing"

func TestStripHTML(t *testing.T) {
	tests := map[string]string{
		"plain   text\n here":                           "plain text here",
		"<p>Hello <b>world</b></p>":                     "Hello world",
		"Tom &amp; Jerry &lt;3":                         "Tom & Jerry <3",
		"<div>a<script>var x = 1;</script>b</div>":      "a b",
		"<style>p{}</style><p>Styled&nbsp;text</p>":     "Styled text",
		"":                                              "",
	}
	for in, want := range tests {
		if got := stripHTML(in); got != want {
			t.Errorf("stripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQueryDomainCleanup(t *testing.T) {
	tests := map[string]string{
		"acme.com":                     "acme.com",
		"  WWW.Acme.com ":              "acme.com",
		"https://www.acme.com/about?x": "acme.com",
		"acme.com:8443":                "acme.com",
		"":                             "",
	}
	for in, want := range tests {
		if got := (Query{CompanyDomain: in}).Domain(); got != want {
			t.Errorf("Domain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHostMatches(t *testing.T) {
	if !hostMatches("https://www.acme.com/news", "acme.com") {
		t.Error("expected www host to match")
	}
	if !hostMatches("https://investors.acme.com/pr", "acme.com") {
		t.Error("expected subdomain to match")
	}
	if hostMatches("https://notacme.com/pr", "acme.com") {
		t.Error("suffix without dot must not match")
	}
	if hostMatches("https://acme.com", "") {
		t.Error("empty domain never matches")
	}
}

func TestKeywordQueryNameOnly(t *testing.T) {
	got := keywordQuery(Query{CompanyName: `Acme "The" Corp`}, []string{" funding ", ""})
	want := `("Acme The Corp") AND (funding)`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if keywordQuery(Query{}, []string{"funding"}) != "" {
		t.Error("expected empty query without identity")
	}
}

func TestExtractSourceName(t *testing.T) {
	if got := extractSourceName("https://feeds.example.com/rss"); got != "Example" {
		t.Errorf("got %q", got)
	}
	if got := extractSourceName("localhost-feed"); got != "localhost-feed" {
		t.Errorf("got %q", got)
	}
}
