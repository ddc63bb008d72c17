package session

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const mergedName = "merged.pdf"

// baseName strips one trailing ".pdf", in any case, from a display name.
func baseName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if len(name) >= 4 && strings.EqualFold(name[len(name)-4:], ".pdf") {
		name = name[:len(name)-4]
	}
	if name == "" {
		return "document"
	}
	return name
}

func pageName(base string, n int) string { return fmt.Sprintf("%s_page_%d.pdf", base, n) }

func selectedName(base string) string { return base + "_selected.pdf" }

func editedName(base string) string { return "edited_" + base + ".pdf" }
