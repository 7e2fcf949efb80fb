// Package export writes scraped profiles as CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"linkreach/pkg/models"
)

// Format selects how CSV fields are written
type Format string

const (
	// FormatLegacy joins fields with commas without quoting, matching files
	// produced by earlier versions. Fields containing commas shift columns.
	FormatLegacy Format = "legacy"
	// FormatRFC4180 quotes fields as needed
	FormatRFC4180 Format = "rfc4180"
)

// DefaultFileName is used when no output file is given
const DefaultFileName = "linkedin_followers.csv"

// Header is the column row of every export
var Header = []string{"Name", "Profile URL", "Headline", "Company", "Location", "Connection Degree", "Mutual Connections"}

// ParseFormat accepts "legacy" and "rfc4180" (also "csv"); empty is legacy
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatLegacy):
		return FormatLegacy, nil
	case string(FormatRFC4180), "csv":
		return FormatRFC4180, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func record(p models.Profile) []string {
	return []string{
		p.Name,
		p.ProfileURL,
		p.Headline,
		p.CurrentCompany,
		p.Location,
		countField(p.ConnectionDegree),
		countField(p.MutualConnections),
	}
}

// countField leaves unknown (zero) counts empty
func countField(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Write writes the header and one row per profile to w
func Write(w io.Writer, profiles []models.Profile, format Format) error {
	switch format {
	case FormatLegacy, "":
		return writeLegacy(w, profiles)
	case FormatRFC4180:
		cw := csv.NewWriter(w)
		if err := cw.Write(Header); err != nil {
			return err
		}
		for _, p := range profiles {
			if err := cw.Write(record(p)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unknown export format %q", format)
}

func writeLegacy(w io.Writer, profiles []models.Profile) error {
	lines := make([]string, 0, len(profiles)+1)
	lines = append(lines, strings.Join(Header, ","))
	for _, p := range profiles {
		lines = append(lines, strings.Join(record(p), ","))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}
