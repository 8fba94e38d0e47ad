// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed queries the NCBI E-utilities API and returns article records
// for a keyword. Search is a two-step protocol: esearch returns matching
// PMIDs, efetch returns article metadata and abstracts for those PMIDs.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/biokg-builder/internal/httputil"
	"github.com/pdiddy/biokg-builder/pkg/types"
)

// API endpoints. Declared as vars so tests can substitute httptest servers.
var (
	esearchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	efetchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

// Client searches PubMed via the E-utilities API.
type Client struct {
	HTTP *http.Client
	Cfg  types.SearchConfig
}

// NewClient returns a client with a timeout-configured HTTP client.
func NewClient(cfg types.SearchConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTP: &http.Client{Timeout: timeout},
		Cfg:  cfg,
	}
}

// Search queries PubMed for articles whose abstracts match keyword and
// returns their records. Zero results is not an error; callers distinguish
// an empty slice from a failed request. The keyword is scoped to the
// abstract field, matching the query the rest of the pipeline expects.
func (c *Client) Search(ctx context.Context, keyword string, w io.Writer) ([]types.ArticleRecord, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("empty search keyword")
	}
	if w == nil {
		w = io.Discard
	}

	ids, err := c.esearch(ctx, keyword, w)
	if err != nil {
		return nil, fmt.Errorf("searching PubMed for %q: %w", keyword, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	fmt.Fprintf(w, "found %d article(s) for %q, fetching details\n", len(ids), keyword)

	batchSize := c.Cfg.FetchBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var articles []types.ArticleRecord
	for start := 0; start < len(ids); start += batchSize {
		if start > 0 {
			if err := c.pause(ctx); err != nil {
				return nil, err
			}
		}

		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		batch, err := c.efetch(ctx, ids[start:end], w)
		if err != nil {
			return nil, fmt.Errorf("fetching article details: %w", err)
		}
		articles = append(articles, batch...)
	}

	return articles, nil
}

// pause waits the configured inter-request delay, respecting cancellation.
// NCBI allows 3 requests/second without an API key, 10 with one.
func (c *Client) pause(ctx context.Context) error {
	delay := c.Cfg.RequestDelay
	if delay <= 0 {
		delay = 350 * time.Millisecond
		if c.Cfg.APIKey != "" {
			delay = 110 * time.Millisecond
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// esearchResponse is the JSON envelope returned by esearch.fcgi.
type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esearch returns the PMIDs matching keyword, newest first.
func (c *Client) esearch(ctx context.Context, keyword string, w io.Writer) ([]string, error) {
	maxResults := c.Cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 200
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", fmt.Sprintf("%s[Abstract]", keyword))
	params.Set("retmax", fmt.Sprintf("%d", maxResults))
	params.Set("retmode", "json")
	c.addCommonParams(params)

	body, err := c.get(ctx, esearchURL, params, w)
	if err != nil {
		return nil, err
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}
	return resp.ESearchResult.IDList, nil
}

// efetch XML structures. Only the fields the pipeline needs are mapped.
type pubmedArticleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Text []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title string `xml:"Title"`
				Issue struct {
					PubDate struct {
						Year  string `xml:"Year"`
						Month string `xml:"Month"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			AuthorList struct {
				Authors []struct {
					LastName string `xml:"LastName"`
					ForeName string `xml:"ForeName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}

// efetch returns article records for the given PMIDs.
func (c *Client) efetch(ctx context.Context, ids []string, w io.Writer) ([]types.ArticleRecord, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")
	c.addCommonParams(params)

	body, err := c.get(ctx, efetchURL, params, w)
	if err != nil {
		return nil, err
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parsing efetch response: %w", err)
	}

	var articles []types.ArticleRecord
	for _, pa := range set.Articles {
		art := pa.Citation.Article

		rec := types.ArticleRecord{
			PMID:     strings.TrimSpace(pa.Citation.PMID),
			Title:    strings.TrimSpace(art.Title),
			Abstract: strings.TrimSpace(strings.Join(art.Abstract.Text, " ")),
			Journal:  strings.TrimSpace(art.Journal.Title),
			Date:     parsePubDate(art.Journal.Issue.PubDate.Year, art.Journal.Issue.PubDate.Month),
		}
		if rec.PMID == "" {
			continue
		}

		for _, a := range art.AuthorList.Authors {
			name := strings.TrimSpace(a.ForeName + " " + a.LastName)
			if name != "" {
				rec.Authors = append(rec.Authors, name)
			}
		}

		articles = append(articles, rec)
	}

	return articles, nil
}

// get issues a GET with retry and returns the response body.
func (c *Client) get(ctx context.Context, base string, params url.Values, w io.Writer) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.Cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 0, w)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("E-utilities returned HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// addCommonParams attaches the NCBI-required identification parameters.
func (c *Client) addCommonParams(params url.Values) {
	params.Set("tool", "biokg-builder")
	if c.Cfg.Email != "" {
		params.Set("email", c.Cfg.Email)
	}
	if c.Cfg.APIKey != "" {
		params.Set("api_key", c.Cfg.APIKey)
	}
}

// monthIndex maps PubMed month abbreviations to month numbers.
var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parsePubDate builds a date from PubMed's year and month strings. PubMed
// months may be numeric ("06") or abbreviated ("Jun"). Missing parts
// degrade gracefully: no year yields a zero time, no month defaults to January.
func parsePubDate(year, month string) time.Time {
	if year == "" {
		return time.Time{}
	}
	var y int
	if _, err := fmt.Sscanf(year, "%d", &y); err != nil {
		return time.Time{}
	}

	m := time.January
	if month != "" {
		if mi, ok := monthIndex[strings.ToLower(month)]; ok {
			m = mi
		} else {
			var mn int
			if _, err := fmt.Sscanf(month, "%d", &mn); err == nil && mn >= 1 && mn <= 12 {
				m = time.Month(mn)
			}
		}
	}

	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
