package date

import "testing"

func TestParseWindow(t *testing.T) {
	for _, w := range Windows {
		got, err := ParseWindow(string(w))
		if err != nil || got != w {
			t.Errorf("ParseWindow(%q) = %v, %v", w, got, err)
		}
	}
	if got, err := ParseWindow("3m"); err != nil || got != ThreeMonths {
		t.Errorf("ParseWindow(%q) = %v, %v", "3m", got, err)
	}
	if _, err := ParseWindow("2W"); err == nil {
		t.Errorf("ParseWindow(%q) expected an error", "2W")
	}
}

func TestWindow_Contains(t *testing.T) {
	now := MustParse("2025-06-15")
	testCases := []struct {
		window Window
		day    string
		want   bool
	}{
		{OneMonth, "2025-05-15", true},
		{OneMonth, "2025-05-14", false},
		{ThreeMonths, "2025-03-15", true},
		{ThreeMonths, "2025-03-14", false},
		{SixMonths, "2024-12-15", true},
		{OneYear, "2024-06-15", true},
		{OneYear, "2024-06-14", false},
		{All, "1999-01-01", true},
	}
	for _, tc := range testCases {
		if got := tc.window.Contains(now, MustParse(tc.day)); got != tc.want {
			t.Errorf("%v.Contains(%v, %v) = %v, want %v", tc.window, now, tc.day, got, tc.want)
		}
	}
}

func TestWindow_Label(t *testing.T) {
	day := MustParse("2025-03-07")
	if got := OneMonth.Label(day); got != "07 Mar" {
		t.Errorf("OneMonth.Label() = %q, want %q", got, "07 Mar")
	}
	if got := All.Label(day); got != "Mar 25" {
		t.Errorf("All.Label() = %q, want %q", got, "Mar 25")
	}
}
