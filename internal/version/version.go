// Package version holds the version of the registrar.
package version

import (
	_ "embed" // for go:embed
	"strconv"
	"strings"
)

// VERSION holds the server's version
//
//go:embed VERSION
var VERSION string

// Version segments
var (
	MAJOR int
	MINOR int
	FIX   int
	PRE   int
)

func init() {
	VERSION = strings.TrimSpace(VERSION)
	MAJOR, MINOR, FIX, PRE = parse(VERSION)
}

func parse(v string) (major, minor, fix, pre int) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return
	}
	major, _ = strconv.Atoi(parts[0])
	minor, _ = strconv.Atoi(parts[1])
	fixPart, prePart, hasPre := strings.Cut(parts[2], "-")
	fix, _ = strconv.Atoi(fixPart)
	if hasPre {
		pre, _ = strconv.Atoi(strings.TrimPrefix(prePart, "pr"))
	}
	return
}

// glyph rows of the banner digits, five rows each
var glyphs = map[rune][5]string{
	'0': {" ### ", "#   #", "#   #", "#   #", " ### "},
	'1': {"  #  ", " ##  ", "  #  ", "  #  ", " ### "},
	'2': {" ### ", "#   #", "  ## ", " #   ", "#####"},
	'3': {"#### ", "    #", " ### ", "    #", "#### "},
	'4': {"#   #", "#   #", "#####", "    #", "    #"},
	'5': {"#####", "#    ", "#### ", "    #", "#### "},
	'6': {" ### ", "#    ", "#### ", "#   #", " ### "},
	'7': {"#####", "   # ", "  #  ", " #   ", " #   "},
	'8': {" ### ", "#   #", " ### ", "#   #", " ### "},
	'9': {" ### ", "#   #", " ####", "    #", " ### "},
	'.': {"  ", "  ", "  ", "  ", "# "},
}

// Banner renders VERSION as ascii art centered in width. Characters without
// a glyph, like the pre-release suffix, are skipped.
func Banner(width int) string {
	var rows [5]strings.Builder
	for _, r := range VERSION {
		g, ok := glyphs[r]
		if !ok {
			continue
		}
		for i := range rows {
			rows[i].WriteString(g[i])
			rows[i].WriteByte(' ')
		}
	}
	var out strings.Builder
	for i := range rows {
		line := strings.TrimRight(rows[i].String(), " ")
		if pad := (width - rows[i].Len()) / 2; pad > 0 {
			out.WriteString(strings.Repeat(" ", pad))
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}
