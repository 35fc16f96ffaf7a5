package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// collapses whitespace and strips non-printable runes, shop names on the
// catalog come with stray nbsp and newline padding
func CleanText(s string) string {
	printable := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			printable.WriteRune(c)
		}
	}
	out := strings.Trim(printable.String(), " \t\n")
	return innerWhitespace.ReplaceAllString(out, " ")
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// strips currency symbols, spaces and thousand separators from a price
// string, leaving only digits
func DigitsOnly(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}
