package linkedin

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"linkreach/pkg/models"
)

// Selector cascades, most specific first. Parsing is best-effort: a field whose
// selectors all miss is left empty.
var (
	profileNameSelectors     = []string{".top-card-layout__title", ".text-heading-xlarge", "h1"}
	profileHeadlineSelectors = []string{".top-card-layout__headline", ".text-body-medium", ".headline"}
	profileLocationSelectors = []string{".top-card__subline-item", ".text-body-small.inline", ".location"}
	profileCompanySelectors  = []string{"[data-section='currentPositionsDetails'] .top-card-link__description", ".pv-text-details__right-panel-item-text", ".company"}
	profileRoleSelectors     = []string{".experience-item__title", ".role"}
	profileConnSelectors     = []string{".top-card__subline-item--connections", ".connections"}

	followerEntrySelectors = "li.follower, .entity-result, .reusable-search__result-container"
	followerTotalSelectors = []string{".followers-count", ".pvs-header__subtitle"}
	nextPageSelectors      = "a[rel='next'], a.next, .artdeco-pagination__button--next"
)

var digitsPattern = regexp.MustCompile(`\d[\d,.]*`)

// parseProfile extracts a Profile from a member profile page
func parseProfile(profileURL string, body []byte) (*models.Profile, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	p := &models.Profile{
		ProfileURL:     profileURL,
		Name:           firstText(doc.Selection, profileNameSelectors),
		Headline:       firstText(doc.Selection, profileHeadlineSelectors),
		Location:       firstText(doc.Selection, profileLocationSelectors),
		CurrentCompany: firstText(doc.Selection, profileCompanySelectors),
		CurrentRole:    firstText(doc.Selection, profileRoleSelectors),
	}

	if p.Name == "" {
		if title, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
			p.Name = strings.TrimSpace(strings.Split(title, " - ")[0])
		}
	}
	if img, ok := doc.Find("meta[property='og:image']").Attr("content"); ok {
		p.ImageURL = strings.TrimSpace(img)
	}
	p.ConnectionCount = parseCount(firstText(doc.Selection, profileConnSelectors))
	p.ConnectionDegree = parseDegree(doc.Find(".dist-value, .degree").First().Text())

	return p, nil
}

// parseFollowersPage extracts follower entries, the reported total and the
// next-page cursor from one follower listing page
func parseFollowersPage(cursor string, body []byte) (*FollowersPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &FollowersPage{}
	doc.Find(followerEntrySelectors).Each(func(_ int, s *goquery.Selection) {
		if p, ok := parseFollowerEntry(s); ok {
			page.Profiles = append(page.Profiles, p)
		}
	})

	page.TotalCount = parseTotal(doc)

	if href, ok := doc.Find(nextPageSelectors).First().Attr("href"); ok {
		page.NextCursor = nextCursor(href, cursor)
	}
	return page, nil
}

func parseFollowerEntry(s *goquery.Selection) (models.Profile, bool) {
	href, ok := s.Find("a[href*='/in/']").First().Attr("href")
	if !ok {
		href, ok = s.Find("a").First().Attr("href")
	}
	if !ok {
		return models.Profile{}, false
	}
	profileURL, err := NormalizeProfileURL(href)
	if err != nil {
		return models.Profile{}, false
	}

	p := models.Profile{
		ProfileURL:        profileURL,
		Name:              firstText(s, []string{".name", ".entity-result__title-text a span[aria-hidden='true']", ".entity-result__title-text"}),
		Headline:          firstText(s, []string{".headline", ".entity-result__primary-subtitle"}),
		Location:          firstText(s, []string{".location", ".entity-result__secondary-subtitle"}),
		CurrentCompany:    firstText(s, []string{".company", ".entity-result__summary"}),
		ConnectionDegree:  parseDegree(firstText(s, []string{".degree", ".entity-result__badge-text", ".dist-value"})),
		MutualConnections: parseCount(firstText(s, []string{".mutual", ".entity-result__simple-insight-text"})),
	}
	if img, ok := s.Find("img").First().Attr("src"); ok {
		p.ImageURL = strings.TrimSpace(img)
	}
	return p, true
}

func parseTotal(doc *goquery.Document) int {
	if v, ok := doc.Find("[data-total-count]").First().Attr("data-total-count"); ok {
		if n := parseCount(v); n > 0 {
			return n
		}
	}
	return parseCount(firstText(doc.Selection, followerTotalSelectors))
}

// firstText returns the trimmed text of the first selector that matches
// something non-empty
func firstText(s *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(s.Find(sel).First().Text())
		if text != "" {
			return collapseSpaces(text)
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseCount reads the first number in s, so "1,234 followers" and "500+" work
func parseCount(s string) int {
	m := digitsPattern.FindString(s)
	if m == "" {
		return 0
	}
	m = strings.NewReplacer(",", "", ".", "").Replace(m)
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// parseDegree reads "1st", "2nd", "3rd+" or a bare digit
func parseDegree(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, r := range s {
		if r >= '1' && r <= '3' {
			return int(r - '0')
		}
		if r >= '0' && r <= '9' {
			return 0
		}
	}
	return 0
}
