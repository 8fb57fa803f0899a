package validation

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Bar Shop", want: "bar-shop"},
		{name: "already slug", in: "bar-shop", want: "bar-shop"},
		{name: "extra separators", in: "  Foo   &  Bar!! ", want: "foo-bar"},
		{name: "diacritics folded", in: "Café Touré", want: "cafe-toure"},
		{name: "digits kept", in: "Shop 24/7", want: "shop-24-7"},
		{name: "non-latin dropped", in: "متجر طرابلس", want: ""},
		{name: "mixed script", in: "متجر Tripoli Store", want: "tripoli-store"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidStoreName(t *testing.T) {
	if !ValidStoreName("Bar Shop") {
		t.Fatalf("expected valid store name")
	}
	if ValidStoreName("!!!") {
		t.Fatalf("expected invalid store name")
	}
}
