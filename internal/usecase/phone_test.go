//go:build !integration

package usecase_test

import (
	"errors"
	"testing"

	"exam-access/internal/domain"
	"exam-access/internal/usecase"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":       "255712345678",
		"255712345678":     "255712345678",
		"712345678":        "255712345678",
		"+255 712-345-678": "255712345678",
		"(0756) 377 013":   "255756377013",
	}
	for in, want := range cases {
		got, err := usecase.NormalizePhone(in, "255")
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
		again, err := usecase.NormalizePhone(got, "255")
		if err != nil || again != got {
			t.Errorf("NormalizePhone is not idempotent for %q: %q %v", got, again, err)
		}
	}

	for _, bad := range []string{"", "abc", "0712", "1234567890123456"} {
		if _, err := usecase.NormalizePhone(bad, "255"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("NormalizePhone(%q): expected ErrInvalidArgument, got %v", bad, err)
		}
	}
}
