package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data          string
		unique, value string
	}{
		{"\fpick_origin|2", "pick_origin", "2"},
		{"\fback", "back", ""},
		{"lang|uz", "lang", "uz"},
		{"\fdate_mode|exact|x", "date_mode", "exact|x"},
		{"", "", ""},
	}
	for _, tc := range tests {
		u, p := ParseCallbackData(&tele.Callback{Data: tc.data})
		if u != tc.unique || p != tc.value {
			t.Fatalf("ParseCallbackData(%q) = %q, %q; want %q, %q", tc.data, u, p, tc.unique, tc.value)
		}
	}
	if u, p := ParseCallbackData(nil); u != "" || p != "" {
		t.Fatalf("nil callback parsed to %q, %q", u, p)
	}
}
