package manager

import (
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

var macDigits = regexp.MustCompile(`^[0-9a-f]{12}$`)

// UnixMAC converts a MAC address in any common notation (e205.71be.c240,
// E2-05-71-BE-C2-40, e2:05:71:be:c2:40) to lower case colon form. ok is false
// when mac does not hold exactly twelve hex digits.
func UnixMAC(mac string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', ':':
			return -1
		}
		return r
	}, strings.ToLower(mac))
	if !macDigits.MatchString(digits) {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(digits); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(digits[i : i+2])
	}
	return b.String(), true
}

// RPCToMap converts the children of elem to nested maps. A leaf becomes its text,
// a child element with a unique tag becomes a map, and repeated tags with children
// become a list of maps.
func RPCToMap(elem *etree.Element) map[string]interface{} {
	out := make(map[string]interface{})
	if elem == nil {
		return out
	}
	counts := make(map[string]int)
	for _, child := range elem.ChildElements() {
		counts[child.Tag]++
	}
	for _, child := range elem.ChildElements() {
		switch {
		case len(child.ChildElements()) == 0:
			out[child.Tag] = strings.ReplaceAll(child.Text(), "\n", "")
		case counts[child.Tag] > 1:
			list, _ := out[child.Tag].([]map[string]interface{})
			out[child.Tag] = append(list, RPCToMap(child))
		default:
			out[child.Tag] = RPCToMap(child)
		}
	}
	return out
}

// lookup walks a slash separated path of map keys, e.g. "mac-interfaces-list/mac-interfaces",
// returning the string found there.
func lookup(m map[string]interface{}, path string) string {
	var cur interface{} = m
	for _, key := range strings.Split(path, "/") {
		node, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		cur = node[key]
	}
	s, _ := cur.(string)
	return strings.TrimSpace(s)
}
