// Package toolcall extracts browser directives that the assistant embeds in
// its replies as {{tool:<name>|url=<value>}} tokens.
package toolcall

import (
	"regexp"
	"strings"
)

const (
	// OpenTool opens a URL in the browser pane.
	OpenTool = "android_browser_open"
	// BrowseTool opens a URL and reads the page back into the conversation.
	BrowseTool = "android_browser_browse"

	openMarker  = "{{tool:"
	closeMarker = "}}"
)

// Visible text substituted when a reply consists only of tool tokens.
const (
	OpenPlaceholder   = "Opening the Hitomi Browser so you can watch me browse."
	BrowsePlaceholder = "Opening the Hitomi Browser and reading the page for you."
	EmptyReply        = "Okay."
)

// Result is one parsed assistant reply. OpenURL and ReadURL are empty when the
// reply carried no usable directive of that kind.
type Result struct {
	VisibleText string
	OpenURL     string
	ReadURL     string
}

var (
	trailingBlanks = regexp.MustCompile(`[ \t]+\n`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
	otherScheme    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:.*$`)
)

// Parse scans reply left to right. Recognized tokens are removed from the
// visible text; unknown tokens are dropped; an unterminated token and
// everything after it is kept verbatim. Only the first URL of each kind wins.
func Parse(reply string) Result {
	source := strings.TrimSpace(reply)
	if source == "" {
		return Result{VisibleText: EmptyReply}
	}

	var (
		visible strings.Builder
		res     Result
	)
	idx := 0
	for idx < len(source) {
		start := strings.Index(source[idx:], openMarker)
		if start < 0 {
			visible.WriteString(source[idx:])
			break
		}
		start += idx
		visible.WriteString(source[idx:start])
		end := strings.Index(source[start:], closeMarker)
		if end < 0 {
			visible.WriteString(source[start:])
			break
		}
		end += start
		body := strings.TrimSpace(source[start+len("{{") : end])
		res.take(body)
		idx = end + len(closeMarker)
	}

	cleaned := trailingBlanks.ReplaceAllString(visible.String(), "\n")
	cleaned = extraNewlines.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)
	switch {
	case cleaned != "":
	case res.OpenURL != "":
		cleaned = OpenPlaceholder
	case res.ReadURL != "":
		cleaned = BrowsePlaceholder
	default:
		cleaned = EmptyReply
	}
	res.VisibleText = cleaned
	return res
}

// take records the URL carried by a "tool:<name>|k=v|..." body.
func (r *Result) take(body string) {
	payload, ok := strings.CutPrefix(body, "tool:")
	if !ok {
		return
	}
	parts := strings.Split(payload, "|")
	name := strings.TrimSpace(parts[0])
	if name != OpenTool && name != BrowseTool {
		return
	}
	for _, part := range parts[1:] {
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(part[:eq]), "url") {
			continue
		}
		url := NormalizeURL(part[eq+1:])
		if url == "" {
			return
		}
		switch {
		case name == BrowseTool && r.ReadURL == "":
			r.ReadURL = url
		case name == OpenTool && r.OpenURL == "":
			r.OpenURL = url
		}
		return
	}
}

// NormalizeURL returns raw unchanged when it is already http(s), "" when it
// uses any other scheme, and an https:// URL otherwise.
func NormalizeURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if otherScheme.MatchString(url) {
		return ""
	}
	return "https://" + url
}
