package resolver

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Text-pattern extraction over live third-party markup. Everything in this
// file is pure so the brittle matching logic stays unit-testable with fixture
// strings, decoupled from network calls.

var (
	// rePlayerSrc matches the loadIframe(...) call site in the embed wrapper
	// and captures the quoted src of the player iframe it injects.
	rePlayerSrc = regexp.MustCompile(`(?s)loadIframe\s*\([^)]*\)\s*\{[^}]*src:\s*['"]([^'"]+)['"]`)

	// reFileURL matches the file: '...' source assignment in the player page.
	reFileURL = regexp.MustCompile(`file:\s*['"]([^'"]+)['"]`)
)

// framePage is what stage two extracts from the root embed page.
type framePage struct {
	OpaqueID  string // data-i attribute on <body>, passed through as transcript id
	IframeSrc string // src of the first <iframe>, raw
}

// extractFramePage pulls the opaque page identifier and the first embedded
// frame reference out of the root document.
func extractFramePage(body []byte) framePage {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return framePage{}
	}

	var page framePage
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "body":
				if page.OpaqueID == "" {
					page.OpaqueID = attrValue(n, "data-i")
				}
			case "iframe":
				if page.IframeSrc == "" {
					page.IframeSrc = attrValue(n, "src")
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if page.IframeSrc != "" && page.OpaqueID != "" {
				return
			}
		}
	}
	walk(doc)
	return page
}

// extractPageSummary is the best-effort fallback for pages that match no
// known template: the document title and the text of the first paragraph.
func extractPageSummary(body []byte) (title, firstParagraph string) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
			case "p":
				if firstParagraph == "" {
					firstParagraph = strings.TrimSpace(nodeText(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if title != "" && firstParagraph != "" {
				return
			}
			walk(c)
		}
	}
	walk(doc)
	return title, firstParagraph
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// extractPlayerSrc returns the player iframe reference embedded in the
// wrapper document, or "" if the call-site pattern is absent.
func extractPlayerSrc(content string) string {
	match := rePlayerSrc.FindStringSubmatch(content)
	if len(match) != 2 {
		return ""
	}
	return match[1]
}

// extractFileURL returns the file: labelled source string from the player
// document, or "" if absent.
func extractFileURL(content string) string {
	match := reFileURL.FindStringSubmatch(content)
	if len(match) != 2 {
		return ""
	}
	return match[1]
}

// normalizeRef turns a raw frame reference into a fetchable address. Exactly
// three branches: protocol-relative references get https prepended, absolute
// references pass through, anything else is used as the literal value.
func normalizeRef(ref string) string {
	switch {
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "http"):
		return ref
	default:
		return ref
	}
}

// resolveAgainstOrigin makes the nested player reference absolute relative to
// the wrapper document's origin: scheme and host come from the wrapper's
// resolved address, the path is the reference (prefixed with "/" when
// relative). Already-absolute references pass through unchanged.
func resolveAgainstOrigin(originURL, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http") {
		return ref
	}
	parsed, err := url.Parse(originURL)
	if err != nil || parsed.Host == "" {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return parsed.Scheme + "://" + parsed.Host + ref
}
