package policy

import "testing"

func testPolicy() *Policy {
	return New([]Entry{
		{
			SourceID:     "binance",
			AllowDisplay: true, AllowRedistribution: true,
			AllowedPurposes: map[string]bool{PurposeIndicators: true},
		},
		{
			SourceID:     "coingecko",
			AllowDisplay: true, AllowRedistribution: false,
			AllowedPurposes: map[string]bool{PurposeIndicators: true},
			Attribution:     "Data by CoinGecko",
		},
		{
			SourceID:     "partner",
			AllowDisplay: false, AllowRedistribution: false,
		},
	})
}

func TestIsAllowed(t *testing.T) {
	p := testPolicy()

	cases := []struct {
		source, purpose string
		want            bool
	}{
		{"binance", PurposeDisplay, true},
		{"binance", PurposeCache, true},
		{"binance", PurposeIndicators, true},
		{"coingecko", PurposeDisplay, true},
		{"coingecko", PurposeCache, false},
		{"coingecko", PurposeIndicators, true},
		{"partner", PurposeDisplay, false},
		{"partner", PurposeIndicators, false},
	}
	for _, tc := range cases {
		if got := p.IsAllowed(tc.source, tc.purpose); got != tc.want {
			t.Errorf("IsAllowed(%q, %q) = %v, want %v", tc.source, tc.purpose, got, tc.want)
		}
	}
}

func TestIsAllowed_UnknownSourceDenied(t *testing.T) {
	p := testPolicy()
	if p.IsAllowed("mystery-feed", PurposeDisplay) {
		t.Error("unknown source must be denied")
	}
}

func TestAttribution(t *testing.T) {
	p := testPolicy()
	if got := p.Attribution("coingecko"); got != "Data by CoinGecko" {
		t.Errorf("attribution: got %q", got)
	}
	if got := p.Attribution("binance"); got != "" {
		t.Errorf("expected empty attribution for binance, got %q", got)
	}
}
