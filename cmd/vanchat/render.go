package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vanchat/vanchat/pkg/chat"
)

var htmlTagRE = regexp.MustCompile(`<[^>]+>`)

// stripHTML flattens html payloads into plain terminal text. Block-level
// closers become newlines so paragraphs stay separated.
func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "</li>", "\n")
	s = htmlTagRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	return strings.TrimSpace(s)
}

func renderAPIMessage(msg *chat.APIMessage) string {
	var b strings.Builder
	for i := range msg.Responses {
		renderResponse(&b, &msg.Responses[i])
	}
	if msg.Response != nil {
		renderResponse(&b, msg.Response)
	}
	return b.String()
}

func renderResponse(b *strings.Builder, r *chat.Response) {
	// Client echoes are already on screen as the user's own input.
	if r.Source == chat.SourceClient {
		return
	}
	label := "bot"
	if r.Source != chat.SourceBot {
		label = string(r.Source)
	}
	for _, el := range r.Elements {
		switch el.Type {
		case chat.ElementTypeText:
			writeLabeled(b, label, el.Payload.Text)
		case chat.ElementTypeHTML:
			writeLabeled(b, label, stripHTML(el.Payload.HTML))
		case chat.ElementTypeImage:
			writeLabeled(b, label, fmt.Sprintf("[image] %s", el.Payload.URL))
		case chat.ElementTypeVideo:
			writeLabeled(b, label, fmt.Sprintf("[video:%s] %s", el.Payload.Source, el.Payload.URL))
		case chat.ElementTypeLinks:
			for _, link := range el.Payload.Links {
				if link.Type == chat.LinkTypeExternalLink {
					fmt.Fprintf(b, "  [%s] %s -> %s\n", link.ID, link.Text, link.URL)
					continue
				}
				fmt.Fprintf(b, "  [%s] %s\n", link.ID, link.Text)
			}
		case chat.ElementTypeJSON:
			// Generic card documents and emitEvent envelopes; events are
			// surfaced through the event observer, cards are app-specific.
		default:
			writeLabeled(b, label, fmt.Sprintf("[unsupported element %q]", string(el.Type)))
		}
	}
}

func writeLabeled(b *strings.Builder, label, text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "%s> %s\n", label, line)
	}
}

type transcriptLine struct {
	source string
	text   string
}

// transcriptLines extracts the archivable plain-text lines of an envelope
// for the local transcript store.
func transcriptLines(msg *chat.APIMessage) []transcriptLine {
	var out []transcriptLine
	collect := func(r *chat.Response) {
		if r.Source == chat.SourceClient {
			return
		}
		for _, el := range r.Elements {
			switch el.Type {
			case chat.ElementTypeText:
				if el.Payload.Text != "" {
					out = append(out, transcriptLine{source: string(r.Source), text: el.Payload.Text})
				}
			case chat.ElementTypeHTML:
				if text := stripHTML(el.Payload.HTML); text != "" {
					out = append(out, transcriptLine{source: string(r.Source), text: text})
				}
			}
		}
	}
	for i := range msg.Responses {
		collect(&msg.Responses[i])
	}
	if msg.Response != nil {
		collect(msg.Response)
	}
	return out
}
