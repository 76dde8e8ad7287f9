//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/usecase"
)

func TestRedeemUseCase_Redeem(t *testing.T) {
	ctx := context.Background()

	setup := func() (*MockAccessCodeRepo, usecase.RedeemUseCase) {
		codes := NewMockAccessCodeRepo()
		codes.Seed("M1", "ABCD-EFGH-JKLM")
		disabled := testMaterial("M2", 0)
		disabled.Enabled = false
		codes.Seed("M2", "WXYZ-WXYZ-WXYZ")
		materials := NewMockMaterialRepo(testMaterial("M1", 2000), disabled)
		return codes, usecase.NewRedeemUseCase(codes, materials, newTestLogger())
	}

	t.Run("should accept a code case-insensitively and only once", func(t *testing.T) {
		codes, uc := setup()
		link, err := uc.Redeem(ctx, "M1", "  abcd-efgh-jklm ", "255756377013")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if link != "https://drive.example/M1" {
			t.Errorf("unexpected link %q", link)
		}
		if _, err := uc.Redeem(ctx, "M1", "ABCD-EFGH-JKLM", "someone-else"); !errors.Is(err, domain.ErrInvalidCode) {
			t.Errorf("expected ErrInvalidCode on reuse, got %v", err)
		}
		if codes.UsedCount() != 1 {
			t.Errorf("expected one used code, got %d", codes.UsedCount())
		}
	})

	t.Run("should not accept a code for another material", func(t *testing.T) {
		_, uc := setup()
		if _, err := uc.Redeem(ctx, "M1", "WXYZ-WXYZ-WXYZ", "x"); !errors.Is(err, domain.ErrInvalidCode) {
			t.Errorf("expected ErrInvalidCode, got %v", err)
		}
	})

	t.Run("should hide unknown and disabled materials behind the generic error", func(t *testing.T) {
		_, uc := setup()
		for _, id := range []string{"M2", "missing"} {
			if _, err := uc.Redeem(ctx, id, "WXYZ-WXYZ-WXYZ", "x"); !errors.Is(err, domain.ErrInvalidCode) {
				t.Errorf("material %s: expected ErrInvalidCode, got %v", id, err)
			}
		}
	})

	t.Run("should accept an approved control number but not a pending one", func(t *testing.T) {
		codes, uc := setup()
		pending := &model.AccessCode{Code: "ASA-2025-AAAAAA", MaterialID: "M1", Status: model.AccessCodePending}
		_ = codes.Create(ctx, nil, pending)
		if _, err := uc.Redeem(ctx, "M1", "ASA-2025-AAAAAA", "x"); !errors.Is(err, domain.ErrInvalidCode) {
			t.Fatalf("pending control number must not redeem, got %v", err)
		}
		if ok, _ := codes.Review(ctx, nil, pending.ID, model.AccessCodeApproved, "admin-1", nil, pending.CreatedAt); !ok {
			t.Fatal("review did not apply")
		}
		if _, err := uc.Redeem(ctx, "M1", "asa-2025-aaaaaa", "x"); err != nil {
			t.Errorf("approved control number must redeem, got %v", err)
		}
	})

	t.Run("should validate input", func(t *testing.T) {
		_, uc := setup()
		if _, err := uc.Redeem(ctx, "", "CODE", "x"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for a missing material, got %v", err)
		}
		if _, err := uc.Redeem(ctx, "M1", "   ", "x"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for a blank code, got %v", err)
		}
	})
}

func TestStatusUseCase_Status(t *testing.T) {
	ctx := context.Background()
	codes := NewMockAccessCodeRepo()
	materials := NewMockMaterialRepo(testMaterial("M1", 2000))
	payments := NewMockPaymentRepo(codes, materials)
	uc := usecase.NewStatusUseCase(payments, newTestLogger())

	mid := "M1"
	payments.Put(&model.Payment{ID: "p1", ExternalID: "TASSA-1", Status: model.PaymentStatusPending, MaterialID: &mid, Amount: 2000})

	if _, err := uc.Status(ctx, usecase.StatusQuery{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without identifiers, got %v", err)
	}
	if _, err := uc.Status(ctx, usecase.StatusQuery{PaymentID: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	v, err := uc.Status(ctx, usecase.StatusQuery{ExternalID: "TASSA-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v.Status != model.PaymentStatusPending || v.AccessCode != nil {
		t.Errorf("a pending payment must not reveal a code, got %+v", v)
	}
	if v.Material == nil || v.Material.Title != "Form Four Mathematics M1" || v.Material.DriveLink != "" {
		t.Errorf("a pending payment shows the title without the link, got %+v", v.Material)
	}
}
