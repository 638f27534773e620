package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var profileTracer = otel.Tracer("service/profile")

// ProfileService reads and edits the users/{uid} profile document.
type ProfileService struct {
	users    port.UserStore
	storage  port.ObjectStorage
	cache    port.Cache[*domain.User]
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewProfileService creates the profile service.
func NewProfileService(
	users port.UserStore,
	storage port.ObjectStorage,
	cache port.Cache[*domain.User],
	bulkhead *resilience.Bulkhead,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		users:    users,
		storage:  storage,
		cache:    cache,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
	}
}

func profileKey(uid string) string { return "profile:" + uid }

func toProfileResponse(u *domain.User, verified bool) *domain.ProfileResponse {
	return &domain.ProfileResponse{
		User:              *u,
		PhoneNumberMasked: domain.MaskPhone(u.PhoneNumber),
		EmailVerified:     verified,
	}
}

// GetProfile returns the profile of uid, served from cache when possible.
func (s *ProfileService) GetProfile(ctx context.Context, uid string, verified bool) (*domain.ProfileResponse, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	u, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return toProfileResponse(u, verified), nil
}

func (s *ProfileService) load(ctx context.Context, uid string) (*domain.User, error) {
	if cached, ok := s.cache.Get(profileKey(uid)); ok {
		s.metrics.IncrCacheHit("profile")
		u := *cached
		return &u, nil
	}
	s.metrics.IncrCacheMiss("profile")

	u, err := s.users.GetUser(ctx, uid)
	if err != nil {
		s.logger.Warn("get profile failed", zap.String("user_id", uid), zap.Error(err))
		return nil, fmt.Errorf("get profile: %w", err)
	}
	stored := *u
	s.cache.Set(profileKey(uid), &stored)
	return u, nil
}

// UpdateProfile validates and stores the editable profile fields. The phone
// is kept as digits only. An empty photoURL keeps the current photo.
func (s *ProfileService) UpdateProfile(ctx context.Context, uid string, req *domain.ProfileUpdateRequest, verified bool) (*domain.ProfileResponse, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	req.Name = strings.TrimSpace(req.Name)
	req.PhotoURL = strings.TrimSpace(req.PhotoURL)
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	phone := domain.UnmaskDigits(req.PhoneNumber)
	if n := len(phone); n != 0 && n != 10 && n != 11 {
		return nil, &domain.ErrValidation{Field: "phoneNumber", Message: "Telefone inválido"}
	}

	current, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.Name = req.Name
	updated.PhoneNumber = phone
	if req.PhotoURL != "" {
		updated.PhotoURL = req.PhotoURL
	}

	if err := s.users.UpdateUser(ctx, uid, &updated); err != nil {
		s.logger.Error("update profile failed", zap.String("user_id", uid), zap.Error(err))
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.cache.Delete(profileKey(uid))
	if updated.PhotoURL != current.PhotoURL {
		removeObject(ctx, s.storage, s.logger, current.PhotoURL)
	}

	s.logger.Info("profile updated", zap.String("user_id", uid))
	return toProfileResponse(&updated, verified), nil
}

// UploadPhoto stores a new profile photo and points photoURL at it.
func (s *ProfileService) UploadPhoto(ctx context.Context, uid, contentType string, body io.Reader) (*domain.UploadResponse, error) {
	ctx, span := profileTracer.Start(ctx, "ProfileService.UploadPhoto")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	ext, err := imageExtension(contentType)
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("users/%s/profile/%s.%s", uid, uuid.New().String(), ext)
	var url string
	err = s.bulkhead.Do(ctx, func() error {
		var err error
		url, err = s.storage.Upload(ctx, path, contentType, body)
		return err
	})
	if err != nil {
		s.metrics.IncrExternalError("storage")
		s.logger.Error("profile photo upload failed", zap.String("user_id", uid), zap.Error(err))
		return nil, fmt.Errorf("upload photo: %w", err)
	}

	updated := *current
	updated.PhotoURL = url
	if err := s.users.UpdateUser(ctx, uid, &updated); err != nil {
		removeObject(ctx, s.storage, s.logger, url)
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.cache.Delete(profileKey(uid))
	removeObject(ctx, s.storage, s.logger, current.PhotoURL)

	return &domain.UploadResponse{URL: url}, nil
}
