package browser

import (
	"encoding/json"
	"strings"
)

// MaxSnapshotText is how much visible page text the extraction keeps.
const MaxSnapshotText = 4000

// ExtractScript returns the page's title, URL and whitespace-collapsed
// visible text as a JSON string. It never throws.
const ExtractScript = `(function(){try{var t=(document.title||'').trim();var u=(location.href||'').trim();` +
	`var b=(document.body&&document.body.innerText?document.body.innerText:'').replace(/\s+/g,' ').trim();` +
	`if(b.length>4000)b=b.slice(0,4000);` +
	`return JSON.stringify({title:t,url:u,text:b});}catch(e){return JSON.stringify({title:'',url:'',text:''});}})();`

// Snapshot is what was read from the loaded page.
type Snapshot struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// Empty reports whether the snapshot carries no page text.
func (s *Snapshot) Empty() bool {
	return s == nil || strings.TrimSpace(s.Text) == ""
}

// DecodeSnapshot parses the script result. Engines hand back the result
// JSON-encoded, so a string literal wrapping the object is unwrapped first;
// a bare object is accepted too. Anything unreadable yields an empty
// snapshot carrying fallbackURL.
func DecodeSnapshot(raw, fallbackURL string) Snapshot {
	empty := Snapshot{URL: fallbackURL}
	body := strings.TrimSpace(raw)
	if body == "" || body == "null" {
		return empty
	}
	var inner string
	if err := json.Unmarshal([]byte(body), &inner); err == nil {
		body = inner
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return empty
	}
	if s.URL == "" {
		s.URL = fallbackURL
	}
	return s
}
