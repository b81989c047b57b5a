package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", "`users`"},
		{"user_data", "`user_data`"},
		{"select", "`select`"},         // reserved word
		{"first name", "`first name`"}, // space in name
		{"user`data", "`user``data`"},  // backtick in name
		{"a`b`c", "`a``b``c`"},         // multiple backticks
		{"", "``"},                     // empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQualify(t *testing.T) {
	tests := []struct {
		table    string
		column   string
		expected string
	}{
		{"users", "id", "`users`.`id`"},
		{"post_comments", "post_id", "`post_comments`.`post_id`"},
		{"odd`table", "col", "`odd``table`.`col`"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := Qualify(tt.table, tt.column)
			if result != tt.expected {
				t.Errorf("Qualify(%q, %q) = %q, want %q", tt.table, tt.column, result, tt.expected)
			}
		})
	}
}
