package memory_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memory"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestStore_TransactionLifecycle(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	tx := &domain.Transaction{
		Description: "Mercado",
		Type:        domain.TransactionExpense,
		Amount:      decimal.RequireFromString("120.50"),
		Date:        day(2024, time.March, 10),
	}
	id, err := store.AddTransaction(ctx, "u1", tx)
	if err != nil || id == "" {
		t.Fatalf("add: id=%q err=%v", id, err)
	}
	store.AddTransaction(ctx, "u1", &domain.Transaction{Description: "Antiga", Date: day(2023, time.December, 31)})
	store.AddTransaction(ctx, "u2", &domain.Transaction{Description: "Outro usuário", Date: day(2024, time.March, 11)})

	first := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, time.March, 31, 23, 59, 59, 999e6, time.UTC)
	list, err := store.ListTransactionsBetween(ctx, "u1", first, last)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("expected only the March transaction of u1, got %+v", list)
	}

	oldest, _ := store.OldestTransactionDate(ctx, "u1")
	if oldest == nil || !oldest.Equal(day(2023, time.December, 31)) {
		t.Errorf("unexpected oldest date %v", oldest)
	}

	got, _ := store.GetTransaction(ctx, "u1", id)
	got.Description = "Feira"
	if err := store.UpdateTransaction(ctx, "u1", got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.DeleteTransaction(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var nf *domain.ErrNotFound
	if _, err := store.GetTransaction(ctx, "u1", id); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.UpdateTransaction(ctx, "u2", got); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound for foreign transaction, got %v", err)
	}
}

func TestStore_OldestDateEmpty(t *testing.T) {
	oldest, err := memory.NewStore().OldestTransactionDate(context.Background(), "nobody")
	if err != nil || oldest != nil {
		t.Errorf("expected nil oldest date, got %v %v", oldest, err)
	}
}

func TestIdentityProvider_SignUpAndSignIn(t *testing.T) {
	idp := memory.NewIdentityProvider(bcrypt.MinCost)
	ctx := context.Background()

	sess, err := idp.SignUp(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if !sess.IsNewUser || sess.EmailVerified {
		t.Errorf("unexpected session %+v", sess)
	}

	var conflict *domain.ErrConflict
	if _, err := idp.SignUp(ctx, "ANA@example.com", "secret1"); !errors.As(err, &conflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	var unauth *domain.ErrUnauthorized
	if _, err := idp.SignIn(ctx, "ana@example.com", "wrong"); !errors.As(err, &unauth) {
		t.Errorf("expected unauthorized, got %v", err)
	}

	if err := idp.SendEmailVerification(ctx, sess.IDToken); err != nil {
		t.Fatalf("send verification: %v", err)
	}
	if idp.VerificationsSent(sess.UID) != 1 {
		t.Errorf("expected one verification email")
	}
	idp.MarkEmailVerified(ctx, sess.UID)

	again, err := idp.SignIn(ctx, "ana@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !again.EmailVerified {
		t.Error("expected verified session")
	}
}

func TestIdentityProvider_RefreshRotatesAndRevokes(t *testing.T) {
	idp := memory.NewIdentityProvider(bcrypt.MinCost)
	ctx := context.Background()
	sess, _ := idp.SignUp(ctx, "bia@example.com", "secret1")

	next, err := idp.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := idp.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Error("used refresh token must be rejected")
	}

	idp.RevokeSessions(ctx, sess.UID)
	if _, err := idp.Refresh(ctx, next.RefreshToken); err == nil {
		t.Error("revoked refresh token must be rejected")
	}
}

func TestIdentityProvider_Google(t *testing.T) {
	idp := memory.NewIdentityProvider(bcrypt.MinCost)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":          "carla@gmail.com",
		"email_verified": true,
		"name":           "Carla",
	})
	raw, _ := token.SignedString([]byte("any-key"))

	sess, err := idp.SignInWithGoogle(context.Background(), raw)
	if err != nil {
		t.Fatalf("google: %v", err)
	}
	if !sess.IsNewUser || !sess.EmailVerified || sess.DisplayName != "Carla" {
		t.Errorf("unexpected session %+v", sess)
	}

	again, _ := idp.SignInWithGoogle(context.Background(), raw)
	if again.IsNewUser || again.UID != sess.UID {
		t.Errorf("second sign-in must reuse the account, got %+v", again)
	}

	if _, err := idp.SignInWithGoogle(context.Background(), "not-a-jwt"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestObjectStorage_UploadAndServe(t *testing.T) {
	s := memory.NewObjectStorage("http://localhost:8080/")

	url, err := s.Upload(context.Background(), "users/u1/receipts/a.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://localhost:8080/files/users/u1/receipts/a.jpg" {
		t.Errorf("unexpected url %s", url)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/users/u1/receipts/a.jpg", nil))
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || string(body) != "jpeg-bytes" {
		t.Errorf("unexpected response %d %q", rec.Code, body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("unexpected content type %s", ct)
	}

	s.Delete(context.Background(), "users/u1/receipts/a.jpg")
	if s.Len() != 0 {
		t.Error("expected object to be deleted")
	}
}
