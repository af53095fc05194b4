package utils

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{name: "already two decimals", input: 12.34, want: 12.34},
		{name: "rounds half up", input: 12.345, want: 12.35},
		{name: "rounds down", input: 12.344, want: 12.34},
		{name: "integer unchanged", input: 15, want: 15},
		{name: "repeating decimal", input: 13.333333, want: 13.33},
		{name: "zero", input: 0, want: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := Round2(tc.input); got != tc.want {
				t.Fatalf("Round2(%v): expected %v, got %v", tc.input, tc.want, got)
			}
		})
	}
}

func TestIsValidGradeValue(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{name: "zero is valid", value: 0, want: true},
		{name: "twenty is valid", value: 20, want: true},
		{name: "middle of scale", value: 12.5, want: true},
		{name: "negative", value: -0.5, want: false},
		{name: "above scale", value: 20.01, want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidGradeValue(tc.value); got != tc.want {
				t.Fatalf("IsValidGradeValue(%v): expected %v, got %v", tc.value, tc.want, got)
			}
		})
	}
}

func TestIsValidRole(t *testing.T) {
	valid := []string{"admin", "secretary", "teacher", "parent", "student"}
	for _, role := range valid {
		if !IsValidRole(role) {
			t.Fatalf("expected %q to be a valid role", role)
		}
	}
	for _, role := range []string{"", "superadmin", "Admin", "root"} {
		if IsValidRole(role) {
			t.Fatalf("expected %q to be rejected", role)
		}
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"jpg", "jpeg", "png", "webp"}

	tests := []struct {
		name     string
		filename string
		want     bool
	}{
		{name: "simple jpg", filename: "photo.jpg", want: true},
		{name: "uppercase extension", filename: "photo.PNG", want: true},
		{name: "double extension takes last", filename: "photo.jpg.webp", want: true},
		{name: "disallowed extension", filename: "photo.exe", want: false},
		{name: "no extension", filename: "photo", want: false},
		{name: "empty filename", filename: "", want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidFileExtension(tc.filename, allowed); got != tc.want {
				t.Fatalf("IsValidFileExtension(%q): expected %v, got %v", tc.filename, tc.want, got)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "slashes replaced", input: "a/b\\c.pdf", want: "a_b_c.pdf"},
		{name: "spaces replaced", input: "Ngono Estelle.pdf", want: "Ngono_Estelle.pdf"},
		{name: "path traversal neutralized", input: "../secret.pdf", want: "__secret.pdf"},
		{name: "trimmed", input: "  report.pdf  ", want: "report.pdf"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeFilename(tc.input); got != tc.want {
				t.Fatalf("SanitizeFilename(%q): expected %q, got %q", tc.input, tc.want, got)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("password stored in clear")
	}
	if err := CheckPassword("s3cret-pass", hash); err != nil {
		t.Fatalf("CheckPassword rejected the right password: %v", err)
	}
	if err := CheckPassword("wrong", hash); err == nil {
		t.Fatal("CheckPassword accepted a wrong password")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(32)
	if err != nil {
		t.Fatalf("GenerateRandomString failed: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("expected length 32, got %d", len(a))
	}
	b, _ := GenerateRandomString(32)
	if a == b {
		t.Fatal("two random strings were identical")
	}
}
