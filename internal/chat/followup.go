package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neboloop/hitomi/internal/browser"
)

// MaxToolResultText caps the page excerpt handed back to the model.
const MaxToolResultText = 3500

// Follow-up messages shown when the page could not be read.
const (
	ApologyUnread = "I opened the Hitomi Browser, but I couldn't read the page yet. Please try again."
	apologySnag   = "I opened the Hitomi Browser, but I hit a snag reading the page: "
)

// ToolResult formats a page snapshot as the user-role message that carries
// the page back into the conversation.
func ToolResult(snap *browser.Snapshot) string {
	title := strings.TrimSpace(snap.Title)
	url := strings.TrimSpace(snap.URL)
	text := strings.TrimSpace(snap.Text)
	if r := []rune(text); len(r) > MaxToolResultText {
		text = string(r[:MaxToolResultText])
	}
	var b strings.Builder
	b.WriteString("[ANDROID_BROWSER_PAGE]\n")
	b.WriteString("Hitomi Browser is visible and loaded.\n")
	b.WriteString("URL: " + url + "\n")
	b.WriteString("Title: " + title + "\n")
	b.WriteString("Visible text excerpt:\n" + text + "\n")
	b.WriteString("[/ANDROID_BROWSER_PAGE]\n")
	b.WriteString("Use this page excerpt to answer the user. If the excerpt is insufficient, say so briefly.")
	return b.String()
}

// snag renders a service failure as a user-visible sentence.
func snag(prefix string, err error) string {
	if errors.Is(err, ErrNoMessage) {
		return prefix + noMessageText
	}
	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = fmt.Sprintf("%T", err)
	}
	return prefix + msg
}
