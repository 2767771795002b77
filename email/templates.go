package email

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"showcheck/group"
)

// DateLayout is how slot dates are shown to the user.
const DateLayout = "Mon, Jan 2, 2006"

func formatAlertBody(cards []group.Card, links Links) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background: #fff; }\n")
	b.WriteString("h2 { color: #2c3e50; }\n")
	b.WriteString("table { border-collapse: collapse; width: 100%; }\n")
	b.WriteString("th, td { border: 1px solid #ddd; padding: 10px; text-align: left; vertical-align: top; }\n")
	b.WriteString("th { background: #3498db; color: white; }\n")
	b.WriteString("tr:nth-child(even) { background: #f8f9fa; }\n")
	b.WriteString(".rare { background: #e74c3c; color: white; font-size: 0.75em; font-weight: 600; padding: 2px 6px; border-radius: 4px; margin-left: 6px; }\n")
	b.WriteString(".slot { display: block; }\n")
	b.WriteString(".button { color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; margin-right: 10px; display: inline-block; }\n")
	b.WriteString(".all-shows { background: #3498db; }\n")
	b.WriteString(".denylist { background: #6c757d; }\n")
	b.WriteString(".footer { margin-top: 30px; }\n")
	b.WriteString("a { color: #3498db; }\n")
	b.WriteString("@media (prefers-color-scheme: dark) {\n")
	b.WriteString("body { background: #1a1a1a; color: #e0e0e0; }\n")
	b.WriteString("h2 { color: #e0e0e0; }\n")
	b.WriteString("th, td { border-color: #444; }\n")
	b.WriteString("tr:nth-child(even) { background: #242424; }\n")
	b.WriteString("}\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<h2>New Shows Available!</h2>\n")
	b.WriteString("<table>\n<tr><th>Source</th><th>Show</th><th>Dates</th><th></th></tr>\n")
	for _, c := range cards {
		b.WriteString("<tr>\n")
		fmt.Fprintf(&b, "<td>%s</td>\n", escapeHTML(string(c.Source)))

		b.WriteString("<td>")
		b.WriteString(escapeHTML(c.Name))
		if c.Rare {
			b.WriteString("<span class=\"rare\">RARE</span>")
		}
		b.WriteString("</td>\n")

		b.WriteString("<td>\n")
		for _, slot := range c.Slots {
			label := slot.Date.In(time.UTC).Format(DateLayout)
			if slot.Time != "" {
				label += " " + slot.Time
			}
			if slot.Link != "" && isSafeURL(slot.Link) {
				fmt.Fprintf(&b, "<a class=\"slot\" href=\"%s\">%s</a>\n", escapeHTML(slot.Link), escapeHTML(label))
			} else {
				fmt.Fprintf(&b, "<span class=\"slot\">%s</span>\n", escapeHTML(label))
			}
		}
		b.WriteString("</td>\n")

		fmt.Fprintf(&b, "<td><a href=\"%s\">Should I go?</a></td>\n", escapeHTML(ChatGPTLink(c)))
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>\n")

	b.WriteString("<div class=\"footer\">\n")
	if links.AllShows != "" {
		fmt.Fprintf(&b, "<a class=\"button all-shows\" href=\"%s\">View All Shows</a>\n", escapeHTML(links.AllShows))
	}
	if links.EditDenylist != "" {
		fmt.Fprintf(&b, "<a class=\"button denylist\" href=\"%s\">Edit Denylist</a>\n", escapeHTML(links.EditDenylist))
	}
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}

// ChatGPTLink builds a link asking ChatGPT whether the show is worth seeing.
func ChatGPTLink(c group.Card) string {
	prompt := fmt.Sprintf("I'm considering going to see '%s' in Las Vegas", c.Name)
	if len(c.Slots) > 0 {
		prompt += " on " + c.Slots[0].Date.In(time.UTC).Format(DateLayout)
	}
	prompt += ". Is this show good? What can you tell me about it? Should I go see it? What should I expect?"
	return "https://chat.openai.com/?q=" + url.QueryEscape(prompt)
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// isSafeURL reports whether a scraped link may be rendered as an href.
// Only http and https are allowed.
func isSafeURL(urlStr string) bool {
	urlStr = strings.TrimSpace(strings.ToLower(urlStr))
	return strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://")
}
