package cookies

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// SessionCookieName es la cookie que identifica una sesión de Instagram
const SessionCookieName = "sessionid"

// NetscapeCookie representa una línea de un archivo de cookies Netscape
type NetscapeCookie struct {
	Domain     string
	Flag       string
	Path       string
	Secure     bool
	Expiration int64 // Unix timestamp, 0 = sesión
	Name       string
	Value      string
}

// Expired indica si la cookie venció en now. Las cookies de sesión (0) no vencen.
func (c NetscapeCookie) Expired(now time.Time) bool {
	return c.Expiration > 0 && c.Expiration < now.Unix()
}

// MatchesDomain indica si la cookie aplica a domain o a un subdominio
func (c NetscapeCookie) MatchesDomain(domain string) bool {
	d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	domain = strings.ToLower(domain)
	return d == domain || strings.HasSuffix(d, "."+domain)
}

// ParseFile lee un archivo de cookies en formato Netscape
func ParseFile(path string) ([]NetscapeCookie, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse lee cookies Netscape
// Formato: domain	flag	path	secure	expiration	name	value
func Parse(r io.Reader) ([]NetscapeCookie, error) {
	var cookies []NetscapeCookie
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// curl marca las cookies HttpOnly con este prefijo
		line = strings.TrimPrefix(line, "#HttpOnly_")

		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			fields = strings.Fields(line)
			if len(fields) < 7 {
				return nil, fmt.Errorf("line %d: invalid format (expected 7 fields, got %d)", lineNum, len(fields))
			}
		}

		expiration, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid expiration timestamp: %w", lineNum, err)
		}

		cookies = append(cookies, NetscapeCookie{
			Domain:     fields[0],
			Flag:       fields[1],
			Path:       fields[2],
			Secure:     strings.EqualFold(fields[3], "TRUE"),
			Expiration: expiration,
			Name:       fields[5],
			Value:      strings.Trim(fields[6], "\""),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("no valid cookies found in file")
	}

	return cookies, nil
}

// SessionID busca la cookie sessionid vigente para domain
func SessionID(cookies []NetscapeCookie, domain string, now time.Time) (string, error) {
	expired := false
	for _, c := range cookies {
		if c.Name != SessionCookieName || !c.MatchesDomain(domain) || c.Value == "" {
			continue
		}
		if c.Expired(now) {
			expired = true
			continue
		}
		return c.Value, nil
	}

	if expired {
		return "", fmt.Errorf("%s cookie for %s is expired", SessionCookieName, domain)
	}
	return "", fmt.Errorf("no %s cookie found for %s", SessionCookieName, domain)
}
