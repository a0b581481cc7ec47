package pipeline

import (
	"net/url"
	"strings"
)

const defaultSourceName = "News Source"

// knownSources is checked in order; the first fragment found in the host wins.
var knownSources = []struct {
	fragment string
	name     string
}{
	{"salesforce.com", "Salesforce"},
	{"saleshacker.com", "Sales Hacker"},
	{"techcrunch.com", "TechCrunch"},
	{"theverge.com", "The Verge"},
	{"wired.com", "Wired"},
	{"zdnet.com", "ZDNet"},
	{"axios.com", "Axios"},
	{"devops.com", "DevOps.com"},
	{"thenewstack.io", "The New Stack"},
	{"infoq.com", "InfoQ"},
	{"kubernetes.io", "Kubernetes Blog"},
	{"hashicorp.com", "HashiCorp"},
	{"aws.amazon.com", "AWS"},
	{"cloud.google.com", "Google Cloud"},
	{"forbes.com", "Forbes"},
	{"news.google.com", "Google News"},
}

// SourceName derives a human-readable publication name from an article URL.
func SourceName(rawURL string) string {
	if rawURL == "" {
		return defaultSourceName
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return defaultSourceName
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, src := range knownSources {
		if strings.Contains(host, src.fragment) {
			return src.name
		}
	}
	label := strings.Split(host, ".")[0]
	if label == "" {
		return defaultSourceName
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
