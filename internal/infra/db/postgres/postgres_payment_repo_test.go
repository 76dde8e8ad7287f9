//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"exam-access/internal/domain"
	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

func newPendingPayment(materialID string) *model.Payment {
	now := time.Now()
	m := materialID
	return &model.Payment{
		ID:         uuid.NewString(),
		ExternalID: "TASSA-" + uuid.NewString(),
		UserPhone:  "255756377013",
		Amount:     2000,
		Currency:   "TZS",
		Provider:   model.ProviderMpesa,
		MaterialID: &m,
		Status:     model.PaymentStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	// 1. Setup
	ctx := context.Background()
	repo := NewPaymentRepo(testPool)
	codes := NewAccessCodeRepo(testPool)

	t.Run("should create and find a payment", func(t *testing.T) {
		cleanup(t)
		seedMaterial(t, "M1", true)
		p := newPendingPayment("M1")

		if err := repo.Create(ctx, nil, p); err != nil {
			t.Fatalf("Failed to create payment: %v", err)
		}
		if err := repo.Create(ctx, nil, p); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists on duplicate, got %v", err)
		}

		byID, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if byID.ExternalID != p.ExternalID || byID.Status != model.PaymentStatusPending {
			t.Errorf("unexpected payment %+v", byID)
		}

		byExt, err := repo.FindByExternalID(ctx, nil, p.ExternalID)
		if err != nil || byExt.ID != p.ID {
			t.Fatalf("FindByExternalID failed: %v", err)
		}

		if _, err := repo.FindByExternalID(ctx, nil, "TASSA-missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should transition only once out of pending", func(t *testing.T) {
		cleanup(t)
		seedMaterial(t, "M1", true)
		p := newPendingPayment("M1")
		if err := repo.Create(ctx, nil, p); err != nil {
			t.Fatalf("create: %v", err)
		}

		ref := "MNO-1"
		raw := json.RawMessage(`{"transactionstatus":"success"}`)
		ok, err := repo.TransitionFromPending(ctx, nil, p.ID, model.PaymentStatusSuccess, &ref, raw)
		if err != nil || !ok {
			t.Fatalf("first transition: ok=%v err=%v", ok, err)
		}
		ok, err = repo.TransitionFromPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, nil)
		if err != nil {
			t.Fatalf("second transition errored: %v", err)
		}
		if ok {
			t.Fatal("a terminal payment must not transition again")
		}

		got, _ := repo.FindByID(ctx, nil, p.ID)
		if got.Status != model.PaymentStatusSuccess {
			t.Errorf("expected success, got %s", got.Status)
		}
		if got.Reference == nil || *got.Reference != "MNO-1" {
			t.Errorf("expected reference to be stored")
		}
		if len(got.CallbackData) == 0 {
			t.Errorf("expected callback data to be stored")
		}

		if ok, _ := repo.RecordCallback(ctx, nil, p.ID, nil, raw); ok {
			t.Error("recording a callback on a terminal payment must not apply")
		}
	})

	t.Run("should attach a code once and show it in the view", func(t *testing.T) {
		cleanup(t)
		seedMaterial(t, "M1", true)
		if err := codes.CreateBatch(ctx, nil, []*model.AccessCode{{Code: "AAAA-BBBB-CCCC", MaterialID: "M1"}}); err != nil {
			t.Fatalf("seed code: %v", err)
		}
		p := newPendingPayment("M1")
		_ = repo.Create(ctx, nil, p)

		code, err := codes.ClaimAvailable(ctx, nil, "M1", p.UserPhone, time.Now())
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if ok, _ := repo.AttachAccessCode(ctx, nil, p.ID, code.ID); ok {
			t.Fatal("attach must not apply while the payment is pending")
		}
		_, _ = repo.TransitionFromPending(ctx, nil, p.ID, model.PaymentStatusSuccess, nil, nil)
		if ok, err := repo.AttachAccessCode(ctx, nil, p.ID, code.ID); err != nil || !ok {
			t.Fatalf("attach: ok=%v err=%v", ok, err)
		}
		if ok, _ := repo.AttachAccessCode(ctx, nil, p.ID, code.ID); ok {
			t.Fatal("a second attach must not apply")
		}

		v, err := repo.View(ctx, nil, "", p.ExternalID)
		if err != nil {
			t.Fatalf("view: %v", err)
		}
		if v.AccessCode == nil || *v.AccessCode != "AAAA-BBBB-CCCC" {
			t.Errorf("expected access code in view, got %+v", v.AccessCode)
		}
		if v.Material == nil || v.Material.DriveLink != "https://drive.example/M1" {
			t.Errorf("expected material link in view, got %+v", v.Material)
		}
		if _, err := repo.View(ctx, nil, uuid.NewString(), ""); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown id, got %v", err)
		}
	})

	t.Run("should lock the row inside a transaction", func(t *testing.T) {
		cleanup(t)
		seedMaterial(t, "M1", true)
		p := newPendingPayment("M1")
		_ = repo.Create(ctx, nil, p)

		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			got, err := repo.FindByExternalID(ctx, tx, p.ExternalID)
			if err != nil {
				return err
			}
			_, err = repo.TransitionFromPending(ctx, tx, got.ID, model.PaymentStatusFailed, nil, json.RawMessage(`{"error":"x"}`))
			return err
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
		got, _ := repo.FindByID(ctx, nil, p.ID)
		if got.Status != model.PaymentStatusFailed {
			t.Errorf("expected failed, got %s", got.Status)
		}
	})

	t.Run("should list stale pending payments", func(t *testing.T) {
		cleanup(t)
		seedMaterial(t, "M1", true)
		old := newPendingPayment("M1")
		old.CreatedAt = time.Now().Add(-3 * time.Hour)
		fresh := newPendingPayment("M1")
		_ = repo.Create(ctx, nil, old)
		_ = repo.Create(ctx, nil, fresh)

		list, err := repo.ListPendingOlderThan(ctx, nil, time.Now().Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 || list[0].ID != old.ID {
			t.Fatalf("expected only the old payment, got %d rows", len(list))
		}
	})
}
