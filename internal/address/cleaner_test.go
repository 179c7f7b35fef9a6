package address

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		cleaned string
		zip     string
	}{
		{
			name:    "strips legal boilerplate",
			input:   "7205 W SUGAR TREE CT 31410, SAID PROPERTY BEING FORMERLY IN THE NAME OF JOHN DOE",
			cleaned: "7205 W SUGAR TREE CT",
			zip:     "31410",
		},
		{
			name:    "lot preamble",
			input:   "LOT 26 MISTWOODE SUB 17 RUSTIC LN",
			cleaned: "17 RUSTIC LN",
			zip:     "",
		},
		{
			name:    "subdivision with embedded zip",
			input:   "105 MILLS RUN S/D PHASE 3 108 BLAINE CT 31405",
			cleaned: "108 BLAINE CT",
			zip:     "31405",
		},
		{
			name:    "zip glued to street type",
			input:   "108 BLAINE CT31405 LOT 12",
			cleaned: "108 BLAINE CT",
			zip:     "31405",
		},
		{
			name:    "in rem prefix",
			input:   "IN REM 1019 E ANDERSON ST",
			cleaned: "1019 E ANDERSON ST",
			zip:     "",
		},
		{
			name:    "plain address passes through",
			input:   "12 OAK ST",
			cleaned: "12 OAK ST",
			zip:     "",
		},
		{
			name:    "trailing zip without clause",
			input:   "4505 SYLVAN DR 31405",
			cleaned: "4505 SYLVAN DR",
			zip:     "31405",
		},
		{
			name:    "empty input",
			input:   "",
			cleaned: "",
			zip:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.input)
			if got.Cleaned != tt.cleaned {
				t.Errorf("Clean(%q).Cleaned = %q, want %q", tt.input, got.Cleaned, tt.cleaned)
			}
			if got.ZipCode != tt.zip {
				t.Errorf("Clean(%q).ZipCode = %q, want %q", tt.input, got.ZipCode, tt.zip)
			}
		})
	}
}

func TestCleanRescuesOverStrippedAddress(t *testing.T) {
	// "SUBLETTE" trips the subdivision strip pattern; the rescue pass must
	// recover the street from the original input.
	got := Clean("123 SUBLETTE ST")
	if got.Cleaned != "123 SUBLETTE ST" {
		t.Errorf("Cleaned = %q, want rescued street", got.Cleaned)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"7205 W SUGAR TREE CT 31410, SAID PROPERTY BEING FORMERLY IN THE NAME OF JOHN DOE",
		"105 MILLS RUN S/D PHASE 3 108 BLAINE CT 31405",
		"12 OAK ST",
	}
	for _, in := range inputs {
		first := Clean(in)
		second := Clean(first.Cleaned)
		if second.Cleaned != first.Cleaned {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, first.Cleaned, second.Cleaned)
		}
	}
}

func TestCleanFoldsUnicodeDashes(t *testing.T) {
	got := Clean("12 OAK–RIDGE DR")
	if got.Cleaned != "12 OAK-RIDGE DR" {
		t.Errorf("Cleaned = %q, want unicode dash folded", got.Cleaned)
	}
}
