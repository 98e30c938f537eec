package proxy

import (
	"bytes"
	"mime"
	"net/http"
	"strings"
)

var closingBody = []byte("</body>")

// ScriptTag returns the element referencing the client script at src.
func ScriptTag(src string) []byte {
	return []byte(`<script src="` + src + `" async></script>`)
}

// InjectClient adds one reference to the client script at src to an HTML
// document, before the last </body> or at the end. A document that already
// references src is returned unchanged with false.
func InjectClient(body []byte, src string) ([]byte, bool) {
	if bytes.Contains(body, []byte(src)) {
		return body, false
	}
	tag := ScriptTag(src)
	out := make([]byte, 0, len(body)+len(tag))
	idx := lastIndexFoldASCII(body, closingBody)
	if idx < 0 {
		out = append(out, body...)
		return append(out, tag...), true
	}
	out = append(out, body[:idx]...)
	out = append(out, tag...)
	return append(out, body[idx:]...), true
}

// lastIndexFoldASCII is bytes.LastIndex ignoring ASCII case. sep must be
// lower case.
func lastIndexFoldASCII(s, sep []byte) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			c := s[i+j]
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			if c != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// injectable reports whether the response carries an uncompressed HTML body.
func injectable(resp *http.Response) bool {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return false
	}
	switch {
	case resp.StatusCode < 200,
		resp.StatusCode == http.StatusNoContent,
		resp.StatusCode == http.StatusNotModified:
		return false
	}
	// Other encodings are passed through without the client.
	if enc := strings.TrimSpace(resp.Header.Get("Content-Encoding")); enc != "" && !strings.EqualFold(enc, "identity") && !isGzip(enc) {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/html"
}
