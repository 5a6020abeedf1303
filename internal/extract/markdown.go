package extract

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Markdown renders the matched element of r as Markdown. Results without
// markup, such as PDF text layers, are returned as their normalized text.
func Markdown(r Result) (string, error) {
	if r.Failed() {
		return "", r.Err
	}
	if strings.TrimSpace(r.HTML) == "" {
		return Normalize(r.Text), nil
	}
	converter := md.NewConverter("", true, nil)
	converter.Remove("script", "style", "noscript", "iframe")
	out, err := converter.ConvertString(r.HTML)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
