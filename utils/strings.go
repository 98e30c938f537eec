package utils

import "strings"

// SplitList splits a comma separated option, dropping empty entries.
func SplitList(value string) (list []string) {
	for _, el := range strings.Split(value, ",") {
		if el = strings.TrimSpace(el); el != "" {
			list = append(list, el)
		}
	}
	return
}
