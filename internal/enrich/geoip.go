package enrich

import (
	"net"
	"regexp"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Geo is the location attached to an alert when a matched line carries
// a resolvable IP address.
type Geo struct {
	IP      string
	Country string
	Region  string
	City    string
	ASNOrg  string
}

// String renders the origin line appended to alert messages, e.g.
// "1.2.3.4 (Berlin, BE, DE, Example AS)".
func (g Geo) String() string {
	var parts []string
	if g.City != "" {
		parts = append(parts, g.City)
	}
	if g.Region != "" {
		parts = append(parts, g.Region)
	}
	if g.Country != "" {
		parts = append(parts, g.Country)
	}
	if g.ASNOrg != "" {
		parts = append(parts, g.ASNOrg)
	}
	if len(parts) == 0 {
		return g.IP
	}
	return g.IP + " (" + strings.Join(parts, ", ") + ")"
}

// GeoIP resolves IPs against local MaxMind databases. A nil *GeoIP is
// valid and resolves nothing; enrichment is strictly optional.
type GeoIP struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// NewGeoIP opens the configured databases. Both paths empty means
// enrichment is disabled and the returned reader is nil.
func NewGeoIP(cityPath, asnPath string) (*GeoIP, error) {
	cityPath = strings.TrimSpace(cityPath)
	asnPath = strings.TrimSpace(asnPath)
	if cityPath == "" && asnPath == "" {
		return nil, nil
	}
	g := &GeoIP{}
	var err error
	if cityPath != "" {
		g.city, err = geoip2.Open(cityPath)
		if err != nil {
			return nil, err
		}
	}
	if asnPath != "" {
		g.asn, err = geoip2.Open(asnPath)
		if err != nil {
			if g.city != nil {
				g.city.Close()
			}
			return nil, err
		}
	}
	return g, nil
}

func (g *GeoIP) Close() error {
	if g == nil {
		return nil
	}
	var first error
	if g.city != nil {
		if err := g.city.Close(); err != nil && first == nil {
			first = err
		}
	}
	if g.asn != nil {
		if err := g.asn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LookupLine extracts the first IP address from a log line and
// resolves it. Returns false when the line has no parsable IP or the
// databases know nothing about it.
func (g *GeoIP) LookupLine(line string) (Geo, bool) {
	if g == nil {
		return Geo{}, false
	}
	ip := FirstIP(line)
	if ip == "" {
		return Geo{}, false
	}
	return g.Lookup(ip)
}

func (g *GeoIP) Lookup(ipStr string) (Geo, bool) {
	if g == nil {
		return Geo{}, false
	}
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil {
		return Geo{}, false
	}

	out := Geo{IP: ip.String()}
	ok := false

	if g.city != nil {
		if rec, err := g.city.City(ip); err == nil {
			if rec.Country.IsoCode != "" {
				out.Country = rec.Country.IsoCode
				ok = true
			}
			if len(rec.Subdivisions) > 0 && rec.Subdivisions[0].IsoCode != "" {
				out.Region = rec.Subdivisions[0].IsoCode
				ok = true
			}
			if name := rec.City.Names["en"]; strings.TrimSpace(name) != "" {
				out.City = name
				ok = true
			}
		}
	}
	if g.asn != nil {
		if rec, err := g.asn.ASN(ip); err == nil {
			if org := strings.TrimSpace(rec.AutonomousSystemOrganization); org != "" {
				out.ASNOrg = org
				ok = true
			}
		}
	}

	return out, ok
}

// ipCandidate is loose on purpose; net.ParseIP does the real
// validation so "999.1.1.1" never slips through. The IPv6 arm requires
// a leading hex group and two colons, which keeps clock fields like
// "12:34" out of the candidate list.
var ipCandidate = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b|\b[0-9a-fA-F]{1,4}:[0-9a-fA-F:]*:[0-9a-fA-F]{1,4}\b`)

// FirstIP returns the first valid IP address in line, or "".
func FirstIP(line string) string {
	for _, cand := range ipCandidate.FindAllString(line, 8) {
		if ip := net.ParseIP(cand); ip != nil {
			return ip.String()
		}
	}
	return ""
}
