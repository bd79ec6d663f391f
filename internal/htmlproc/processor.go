// Package htmlproc instruments HTML entry documents for live preview.
//
// Processing injects the hot-reload bootstrap script into the document head
// and rewrites root-relative script and stylesheet URLs to the serving base
// path, leaving every other attribute untouched.
package htmlproc

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sandview/previewd/internal/config"
)

//go:embed bootstrap.js
var bootstrapJS string

// Config is the global configuration object the injected bootstrap script
// reads from the page.
type Config struct {
	// ChannelURL is the websocket URL of the HMR channel.
	ChannelURL string `json:"channelUrl"`

	// BaseURL is the serving base path for module fetches.
	BaseURL string `json:"baseUrl"`

	// ReloadDebounceMs overrides the client's full-reload debounce window.
	ReloadDebounceMs int `json:"reloadDebounceMs,omitempty"`

	// MaxReconnectAttempts caps the client's automatic reconnects.
	MaxReconnectAttempts int `json:"maxReconnectAttempts,omitempty"`
}

// Process instruments an HTML entry document.
//
// Parameters:
//   - doc: The HTML source
//   - cfg: Bootstrap configuration injected into the page
//
// Returns:
//   - string: The instrumented document
//   - error: Any parse or render error
func Process(doc string, cfg Config) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var head *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				head = n
			case atom.Script:
				rewriteAttr(n, "src", cfg.BaseURL)
			case atom.Link:
				if attrVal(n, "rel") == "stylesheet" {
					rewriteAttr(n, "href", cfg.BaseURL)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if head != nil {
		head.AppendChild(configScript(cfg))
		head.AppendChild(scriptNode(bootstrapJS))
	}

	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return b.String(), nil
}

// rewriteAttr prefixes a root-relative URL attribute with the base URL.
// Absolute URLs, protocol-relative URLs, and non-root-relative paths are
// left alone; all other attributes are preserved verbatim.
func rewriteAttr(n *html.Node, name, baseURL string) {
	for i, a := range n.Attr {
		if a.Key != name {
			continue
		}
		if isRootRelative(a.Val) {
			n.Attr[i].Val = config.JoinBase(baseURL, a.Val)
		}
		return
	}
}

// isRootRelative reports whether a URL should be rebased: it must start
// with a single "/" and not be absolute or protocol-relative.
func isRootRelative(u string) bool {
	if !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") {
		return false
	}
	return true
}

// attrVal returns the value of the named attribute, or "".
func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// configScript builds the script element defining the page's global
// preview configuration object.
func configScript(cfg Config) *html.Node {
	payload, _ := json.Marshal(cfg)
	return scriptNode(fmt.Sprintf("window.__PREVIEW_CONFIG__ = %s;", payload))
}

// scriptNode builds an inline script element.
func scriptNode(code string) *html.Node {
	script := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
	}
	script.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: code,
	})
	return script
}
