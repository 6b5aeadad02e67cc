// Package urlparts splits absolute http(s) URLs into the pieces a request
// needs and resolves redirect targets against them.
package urlparts

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/http/httpguts"
	"golang.org/x/net/idna"

	"github.com/WhileEndless/go-requests/pkg/constants"
	"github.com/WhileEndless/go-requests/pkg/errors"
)

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Parts is an absolute URL split into connection identity and request target.
type Parts struct {
	Secured bool
	// Host is the host as written in the URL, IPv6 literals keep their brackets.
	Host string
	Port uint16
	// Path is the request target: path plus query, never empty, always
	// starting with '/'. The fragment is dropped.
	Path string
}

// DefaultPort returns 443 for secured parts and 80 otherwise.
func (p Parts) DefaultPort() uint16 {
	if p.Secured {
		return constants.DefaultHTTPSPort
	}
	return constants.DefaultHTTPPort
}

// Scheme returns "https" or "http".
func (p Parts) Scheme() string {
	if p.Secured {
		return "https"
	}
	return "http"
}

// HostPort returns the host, followed by ":port" when the port is not the
// scheme default. This is the value of the Host request header.
func (p Parts) HostPort() string {
	if p.Port == p.DefaultPort() {
		return p.Host
	}
	return p.Host + ":" + strconv.Itoa(int(p.Port))
}

// String re-assembles the canonical URL, omitting a default port.
func (p Parts) String() string {
	return p.Scheme() + "://" + p.HostPort() + p.Path
}

// SameIdentity reports whether both parts address the same peer.
func (p Parts) SameIdentity(o Parts) bool {
	return p.Port == o.Port && p.Secured == o.Secured && strings.EqualFold(p.Host, o.Host)
}

// IsAbsolute reports whether raw starts with a supported scheme prefix.
func IsAbsolute(raw string) bool {
	return strings.HasPrefix(raw, schemeHTTP) || strings.HasPrefix(raw, schemeHTTPS)
}

// Split parses an absolute http:// or https:// URL.
func Split(raw string) (Parts, error) {
	var p Parts
	rest := raw

	switch {
	case strings.HasPrefix(rest, schemeHTTPS):
		p.Secured = true
		rest = rest[len(schemeHTTPS):]
	case strings.HasPrefix(rest, schemeHTTP):
		rest = rest[len(schemeHTTP):]
	default:
		return Parts{}, errors.NewInvalidURLError(raw, "scheme must be http:// or https://")
	}
	p.Port = p.DefaultPort()

	i := 0
	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Parts{}, errors.NewInvalidURLError(raw, "unterminated IPv6 literal")
		}
		i = end + 1
	} else {
		for i < len(rest) && !isHostTerminator(rest[i]) {
			i++
		}
	}
	host := rest[:i]
	rest = rest[i:]

	if host == "" {
		return Parts{}, errors.NewInvalidURLError(raw, "missing host")
	}
	host, err := asciiHost(host)
	if err != nil {
		return Parts{}, errors.NewInvalidURLError(raw, err.Error())
	}
	if len(host) > constants.MaxHostLength || !httpguts.ValidHostHeader(host) {
		return Parts{}, errors.NewInvalidURLError(raw, "invalid host")
	}
	p.Host = host

	if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if j > 0 {
			port, err := strconv.ParseUint(rest[:j], 10, 16)
			if err != nil {
				return Parts{}, errors.NewInvalidURLError(raw, "port out of range")
			}
			// port 0 keeps the scheme default
			if port != 0 {
				p.Port = uint16(port)
			}
		}
		rest = rest[j:]
	}

	if rest != "" && rest[0] != '/' && rest[0] != '?' && rest[0] != '#' {
		return Parts{}, errors.NewInvalidURLError(raw, "unexpected character after host")
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	if strings.ContainsAny(rest, " \r\n") {
		return Parts{}, errors.NewInvalidURLError(raw, "whitespace in path")
	}
	switch {
	case rest == "":
		rest = "/"
	case rest[0] == '?':
		rest = "/" + rest
	}
	p.Path = rest

	return p, nil
}

func isHostTerminator(c byte) bool {
	return c == '/' || c == '?' || c == '#' || c == ':'
}

// asciiHost converts internationalized host names to their punycode form.
func asciiHost(host string) (string, error) {
	for i := 0; i < len(host); i++ {
		if host[i] >= utf8.RuneSelf {
			return idna.Lookup.ToASCII(host)
		}
	}
	return host, nil
}

// Resolve returns the absolute URL a Location header value points to when
// received in response to a request for base.
//
// Absolute locations are returned unchanged. A location starting with '/'
// replaces the path; any other location is joined to the directory of the
// base path. Dot segments are removed from the result.
func Resolve(base Parts, location string) (string, error) {
	location = strings.TrimSpace(location)
	if IsAbsolute(location) {
		return location, nil
	}
	if strings.HasPrefix(location, "//") {
		return base.Scheme() + ":" + location, nil
	}
	if strings.ContainsAny(location, " \r\n") {
		return "", errors.NewInvalidURLError(location, "invalid redirect location")
	}

	if i := strings.IndexByte(location, '#'); i >= 0 {
		location = location[:i]
	}
	ref, query := location, ""
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		ref, query = ref[:i], ref[i:]
	}

	basePath := base.Path
	if i := strings.IndexByte(basePath, '?'); i >= 0 {
		basePath = basePath[:i]
	}

	var target string
	switch {
	case strings.HasPrefix(ref, "/"):
		target = ref
	case ref == "":
		target = basePath
		if query == "" {
			query = base.Path[len(basePath):]
		}
	default:
		target = basePath[:strings.LastIndexByte(basePath, '/')+1] + ref
	}

	return base.Scheme() + "://" + base.HostPort() + RemoveDotSegments(target) + query, nil
}

// RemoveDotSegments removes "." and ".." segments from an absolute path,
// so "/a/b/../c/./d" becomes "/a/c/d". A ".." never climbs above the root.
func RemoveDotSegments(p string) string {
	if !strings.Contains(p, ".") {
		return p
	}
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for i, s := range segs {
		last := i == len(segs)-1
		switch s {
		case ".":
			if last {
				out = append(out, "")
			}
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}
