// Package diffproc implements the Diff Fetcher (retrieving a unified diff
// for a pull request, with SSRF-defended use of a caller-supplied URL) and
// the Diff Processor (chunking, extension filtering, and the size-adaptive
// skip policy applied before a diff is sent to the LLM Gateway).
package diffproc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/codecritics/codecritic/internal/hostclient"
	"github.com/codecritics/codecritic/internal/types"
)

// allowedDiffHosts are the only hosts a caller-supplied diffUrl is trusted
// against; this is the source host's API domain and its raw-content mirror.
var allowedDiffHosts = []string{"github.com", "raw.githubusercontent.com"}

// Fetcher retrieves the unified diff for a pull request, preferring the
// envelope's diffUrl when it passes the allow-pattern check and falling back
// to the host API's compare-commits capability otherwise.
type Fetcher struct {
	host       hostclient.Client
	httpClient *http.Client
}

func NewFetcher(host hostclient.Client, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{host: host, httpClient: httpClient}
}

// Fetch returns the unified diff text for owner/repo#number between baseSHA
// and headSHA, preferring diffURL when it is safe to use.
func (f *Fetcher) Fetch(ctx context.Context, owner, repo string, number int, baseSHA, headSHA, diffURL string) (string, error) {
	if diffURL != "" && isAllowedDiffURL(diffURL, owner, repo, number) {
		diff, err := f.fetchRaw(ctx, diffURL)
		if err == nil {
			return diff, nil
		}
		// Fall through to the API fallback on any fetch error; a bad direct
		// URL should not fail the job outright when the API path can serve it.
	}

	diff, err := f.host.CompareCommits(ctx, owner, repo, baseSHA, headSHA)
	if err != nil {
		return "", err
	}
	return diff, nil
}

// isAllowedDiffURL implements the SSRF allow-pattern from the Diff Fetcher
// contract: scheme in {http, https}, host ending in a trusted domain, and a
// path containing "<owner>/<repo>/pull/<number>" as a substring.
func isAllowedDiffURL(raw, owner, repo string, number int) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	hostOK := false
	for _, allowed := range allowedDiffHosts {
		if u.Hostname() == allowed || strings.HasSuffix(u.Hostname(), "."+allowed) {
			hostOK = true
			break
		}
	}
	if !hostOK {
		return false
	}

	needle := fmt.Sprintf("%s/%s/pull/%d", owner, repo, number)
	return strings.Contains(u.Path, needle)
}

func (f *Fetcher) fetchRaw(ctx context.Context, diffURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, diffURL, nil)
	if err != nil {
		return "", types.Permanent("diff_fetch", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", types.Transient("diff_fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", types.Transient("diff_fetch", fmt.Errorf("diff url returned %s", resp.Status))
	}
	if resp.StatusCode >= 400 {
		return "", types.Permanent("diff_fetch", fmt.Errorf("diff url returned %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Transient("diff_fetch", err)
	}
	return string(body), nil
}
