package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return &Client{httpClient: http.DefaultClient, baseURL: serverURL, userAgent: "test-agent"}
}

const reverseJSON = `{"place_id":1,"osm_type":"way","osm_id":42,"lat":"-41.2799","lon":"174.7806",
"name":"Old St Paul's","display_name":"Old St Paul's, 34 Mulgrave Street, Thorndon, Wellington",
"address":{"house_number":"34","road":"Mulgrave Street","suburb":"Thorndon","city":"Wellington","postcode":"6011","country":"New Zealand","country_code":"nz"}}`

func TestClient_Reverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q", ua)
		}
		q := r.URL.Query()
		switch q.Get("lat") {
		case "-41.2799000":
			if q.Get("lon") != "174.7806000" || q.Get("format") != "jsonv2" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(reverseJSON))
		case "0.0000000":
			w.Write([]byte(`{"error":"Unable to geocode"}`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer server.Close()
	c := newTestClient(server.URL)

	loc, err := c.Reverse(context.Background(), -41.2799, 174.7806)
	if err != nil {
		t.Fatalf("Reverse() error: %v", err)
	}
	if got, want := loc.Address.Format(), "34 Mulgrave Street, Thorndon, Wellington 6011"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
	if loc.OsmID != 42 {
		t.Errorf("OsmID = %d", loc.OsmID)
	}

	if _, err := c.Reverse(context.Background(), 0, 0); err == nil {
		t.Error("expected the Nominatim error to surface")
	}
	if _, err := c.Reverse(context.Background(), 1, 1); err == nil {
		t.Error("expected an error on HTTP 429")
	}
}

func TestClient_Details(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/details" || q.Get("osmtype") != "W" || q.Get("osmid") != "42" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"osm_type":"W","osm_id":42,"localname":"Old St Paul's","calculated_wikipedia":"en:Old St Paul's, Wellington"}`))
	}))
	defer server.Close()

	d, err := newTestClient(server.URL).Details(context.Background(), "way", 42)
	if err != nil {
		t.Fatalf("Details() error: %v", err)
	}
	if d.CalculatedWikipedia != "en:Old St Paul's, Wellington" {
		t.Errorf("CalculatedWikipedia = %q", d.CalculatedWikipedia)
	}
	if _, err := newTestClient(server.URL).Details(context.Background(), "area", 1); err == nil {
		t.Error("expected an error for an unknown osm type")
	}
}

func TestAddress_Format(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{"town fallback", Address{Road: "Main Road", Town: "Greytown"}, "Main Road, Greytown"},
		{"suburb equal to city", Address{Suburb: "Nelson", City: "Nelson", Postcode: "7010"}, "Nelson 7010"},
		{"empty", Address{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.addr.Format(); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_WaitHonoursInterval(t *testing.T) {
	c := &Client{interval: 30 * time.Millisecond}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("three calls took %v, want at least 60ms", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.interval = time.Hour
	if err := c.wait(ctx); err == nil {
		t.Error("expected a context error")
	}
}
