package linesort

import "testing"

func TestSortLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"basic", "banana\napple\ncherry", "apple\nbanana\ncherry"},
		{"two lines", "b\na", "a\nb"},
		{"empty", "", ""},
		{"single line", "only", "only"},
		{"trailing newline sorts empty line first", "b\na\n", "\na\nb"},
		{"duplicates kept", "b\na\nb", "a\nb\nb"},
		{"uppercase before lowercase", "b\nB\na\nA", "A\nB\na\nb"},
		{"carriage returns preserved", "b\r\na\r\n", "\na\r\nb\r"},
		{"code point order", "é\nz\na", "a\nz\né"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SortLines(tt.in); got != tt.want {
				t.Errorf("SortLines(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSortLines_Idempotent(t *testing.T) {
	inputs := []string{
		"banana\napple\ncherry",
		"z\n\ny\n\n",
		"日本\nabc\nÄ\n123",
		"\n\n\n",
	}
	for _, in := range inputs {
		once := SortLines(in)
		if twice := SortLines(once); twice != once {
			t.Errorf("SortLines not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestDestinationKey(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		source string
		want   string
	}{
		{"unsorted/data.txt", "sorted-unsorted/sorted-data.srt"},
		{"unsorted/readme", "sorted-unsorted/sorted-readme.srt"},
		{"unsorted/list.csv", "sorted-unsorted/sorted-list.csv.srt"},
		{"unsorted/nested/dir/words.txt", "sorted-unsorted/sorted-words.srt"},
		// Only the first occurrence is rewritten.
		{"unsorted/a.txt.b.txt", "sorted-unsorted/sorted-a.srt.b.txt"},
		// Not ending in .txt: append, even when .txt appears earlier.
		{"unsorted/a.txt.bak", "sorted-unsorted/sorted-a.txt.bak.srt"},
		{"unsorted/", "sorted-unsorted/sorted-.srt"},
		{"unsorted/.txt", "sorted-unsorted/sorted-.srt"},
		{"unsorted/DATA.TXT", "sorted-unsorted/sorted-DATA.TXT.srt"},
	}
	for _, tt := range tests {
		if got := DestinationKey(cfg, tt.source); got != tt.want {
			t.Errorf("DestinationKey(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestDestinationKey_CustomConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputPrefix = "out/"
	cfg.InputExtension = ".csv"
	cfg.OutputExtension = ".sorted"

	if got := DestinationKey(cfg, "in/rows.csv"); got != "out/rows.sorted" {
		t.Errorf("got %q, want %q", got, "out/rows.sorted")
	}
	if got := DestinationKey(cfg, "in/rows.txt"); got != "out/rows.txt.sorted" {
		t.Errorf("got %q, want %q", got, "out/rows.txt.sorted")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.OutputBucket = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty output bucket")
	}
}
