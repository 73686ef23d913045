package content

import (
	"bufio"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
)

// sample is the email text the checks run against.
type sample struct {
	authResults     []string
	listUnsubscribe bool

	text  string
	links []link
}

type link struct {
	href string
	text string
}

// decode turns the raw header block and body into a sample. With headers
// present the two are joined into one message so MIME encodings and
// multipart bodies get decoded; a message enmime cannot read is used as is.
func decode(headers, body string) sample {
	var s sample
	var text, html string

	if strings.TrimSpace(headers) != "" {
		msg := strings.TrimRight(headers, "\r\n") + "\r\n\r\n" + body
		env, err := enmime.ReadEnvelope(strings.NewReader(msg))
		if err == nil {
			s.authResults = env.GetHeaderValues("Authentication-Results")
			s.listUnsubscribe = env.GetHeader("List-Unsubscribe") != ""
			text, html = env.Text, env.HTML
		} else {
			s.authResults = rawHeaderValues(headers, "Authentication-Results")
			s.listUnsubscribe = len(rawHeaderValues(headers, "List-Unsubscribe")) > 0
			text = body
		}
		// Some samples paste the header line without proper folding.
		if len(s.authResults) == 0 {
			s.authResults = rawHeaderValues(headers, "Authentication-Results")
		}
	} else {
		text = body
	}

	if html == "" && looksLikeHTML(text) {
		html, text = text, ""
	}
	if html != "" {
		htmlText, links := parseHTML(html)
		if strings.TrimSpace(text) == "" {
			text = htmlText
		}
		s.links = links
	}
	s.text = text
	return s
}

func looksLikeHTML(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "<html") ||
		strings.Contains(l, "<body") ||
		strings.Contains(l, "<a ") ||
		strings.Contains(l, "<p>") ||
		strings.Contains(l, "<div")
}

func parseHTML(html string) (string, []link) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html, nil
	}
	doc.Find("script, style").Remove()

	var links []link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, link{href: href, text: strings.TrimSpace(a.Text())})
	})
	return strings.Join(strings.Fields(doc.Text()), " "), links
}

// rawHeaderValues is a forgiving header scan used when the block does not
// parse as a message header: it matches "Name:" at line start and keeps
// continuation lines.
func rawHeaderValues(headers, name string) []string {
	var out []string
	prefix := strings.ToLower(name) + ":"
	current := -1

	sc := bufio.NewScanner(strings.NewReader(headers))
	for sc.Scan() {
		line := sc.Text()
		if current >= 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			out[current] += " " + strings.TrimSpace(line)
			continue
		}
		current = -1
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			out = append(out, strings.TrimSpace(line[len(prefix):]))
			current = len(out) - 1
		}
	}
	return out
}
