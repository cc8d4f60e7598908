package tracking

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://x.com/p/1", "http://x.com/p/1"},
		{"http://x.com/p/1/", "http://x.com/p/1"},
		{"  HTTP://X.com/P/1//  ", "http://x.com/p/1"},
		{"http://x.com/p/1?utm_source=mail&utm_medium=cpc", "http://x.com/p/1"},
		{"http://x.com/p/1/?id=7&ref=home&source=app", "http://x.com/p/1?id=7"},
		{"http://x.com/p/1?refresh=1", "http://x.com/p/1?refresh=1"},
		{"http://x.com/p/1#gallery", "http://x.com/p/1"},
		{"http://x.com/", "http://x.com"},
	}
	for _, c := range cases {
		if got := NormalizeURL(c.in); got != c.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"http://x.com/p/1/",
		"https://www.magicbricks.com/propertyDetails/3-BHK-Flat?id=4d42&utm_campaign=x/",
		"http://x.com/p?a=/&/",
		"http://x.com/p?#/",
		"HTTP://X.COM/?UTM_SOURCE=A&b=%2F",
		"",
		"   ",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		if twice := NormalizeURL(once); twice != once {
			t.Fatalf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestHashURL_StableAcrossVariants(t *testing.T) {
	variants := []string{
		"http://x.com/p/1",
		"HTTP://X.COM/P/1/",
		" http://x.com/p/1?utm_source=feed ",
	}
	want := HashURL(NormalizeURL(variants[0]))
	if len(want) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(want))
	}
	for _, v := range variants {
		_, hash := Identity(v)
		if hash != want {
			t.Fatalf("hash for %q = %s, want %s", v, hash, want)
		}
	}
	if HashURL("http://x.com/p/2") == want {
		t.Fatalf("different URLs must not share a hash")
	}
}
