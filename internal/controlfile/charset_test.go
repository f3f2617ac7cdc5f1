package controlfile

import "testing"

func TestCharset(t *testing.T) {
	for _, name := range []string{"", "UTF-8", "utf8", "ISO-8859-1", "windows-1252", "Shift_JIS"} {
		if _, err := Charset(name); err != nil {
			t.Errorf("expected %q to resolve: %v", name, err)
		}
	}
	if _, err := Charset("klingon-7"); err == nil {
		t.Error("expected unknown charset to fail")
	}
}
