package builtin

import (
	"reflect"
	"testing"
)

func TestContactExtractor(t *testing.T) {
	t.Parallel()

	t.Run("collects emails and profiles from markup", func(t *testing.T) {
		t.Parallel()
		page := `<html><body>
			<p>Write to Support@Example.com or sales@example.com.</p>
			<a href="mailto:support@example.com">Mail</a>
			<a href="https://github.com/plugcrawler">Code</a>
			<a href="https://x.com/crawler_news">News</a>
			<a href="https://www.linkedin.com/company/plugcrawler-inc">Jobs</a>
		</body></html>`

		got := process(t, NewContactExtractor(), page)
		want := map[string][]string{
			"emails":   {"sales@example.com", "support@example.com"},
			"github":   {"plugcrawler"},
			"twitter":  {"crawler_news"},
			"linkedin": {"plugcrawler-inc"},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("page without contacts is empty", func(t *testing.T) {
		t.Parallel()
		got, ok := process(t, NewContactExtractor(), samplePage).(map[string][]string)
		if !ok || len(got) != 0 {
			t.Errorf("expected no contacts, got %v", got)
		}
	})
}

func TestTrackerExtractor(t *testing.T) {
	t.Parallel()

	page := `<script async src="https://www.googletagmanager.com/gtag/js?id=G-ABCDEF1234"></script>
		<script>
			gtag('config', 'UA-123456-1');
			gtag('config', 'UA-123456-1');
			fbq('init', '123456789012345');
			(adsbygoogle = window.adsbygoogle || []).push({google_ad_client: "ca-pub-1234567890123456"});
			ym(12345678, "init", {});
		</script>`

	got := process(t, NewTrackerExtractor(), page)
	want := map[string][]string{
		"google_analytics_ua":  {"UA-123456-1"},
		"google_analytics_ga4": {"G-ABCDEF1234"},
		"facebook_pixel":       {"123456789012345"},
		"google_adsense":       {"ca-pub-1234567890123456"},
		"yandex_metrica":       {"12345678"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
