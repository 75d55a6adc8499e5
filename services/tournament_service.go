package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/VALX-GALAXY/SportsInn-sub001/middleware"
	"github.com/VALX-GALAXY/SportsInn-sub001/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

type TournamentService struct {
	DB       *gorm.DB
	Cache    ListingCache
	Notifier Notifier
	Live     *LiveHub

	// AllowDecisionChange permits flipping an already decided application
	// to the other outcome. Off by default: a decision is final.
	AllowDecisionChange bool
}

func NewTournamentService(db *gorm.DB, cache ListingCache, notifier Notifier, live *LiveHub, allowDecisionChange bool) *TournamentService {
	return &TournamentService{
		DB:                  db,
		Cache:               cache,
		Notifier:            notifier,
		Live:                live,
		AllowDecisionChange: allowDecisionChange,
	}
}

// CreateTournamentInput carries the creator-supplied tournament fields.
type CreateTournamentInput struct {
	Title     string
	EntryFee  float64
	Location  string
	Type      string
	Vacancies int
	Deadline  *time.Time
}

// Create persists a new tournament with an empty applicant list, invalidates
// the listing cache and fans out a best-effort announcement to players.
func (s *TournamentService) Create(ctx context.Context, creatorID string, in CreateTournamentInput) (*models.Tournament, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", models.ErrValidation)
	}
	if in.EntryFee < 0 {
		return nil, fmt.Errorf("%w: entry_fee must be non-negative", models.ErrValidation)
	}
	if in.Vacancies < 0 {
		return nil, fmt.Errorf("%w: vacancies must be non-negative", models.ErrValidation)
	}

	t := &models.Tournament{
		ID:         uuid.NewString(),
		Slug:       slug.Make(title),
		Title:      title,
		EntryFee:   in.EntryFee,
		Location:   in.Location,
		Type:       in.Type,
		Vacancies:  in.Vacancies,
		Deadline:   in.Deadline,
		Status:     models.TournamentStatusOpen,
		CreatedBy:  creatorID,
		Applicants: []models.TournamentApplication{},
	}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, fmt.Errorf("create tournament: %w", err)
	}

	s.invalidateListing(ctx)
	go s.notifyAudience("player", "new_tournament",
		fmt.Sprintf("New tournament: %s", t.Title),
		map[string]interface{}{"tournament_id": t.ID})

	return t, nil
}

// ListPage returns one page of tournaments, newest first, read through the
// listing cache. Cache failures silently fall through to the store.
func (s *TournamentService) ListPage(ctx context.Context, page, limit int) (*models.TournamentPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	key := ListingKey(page, limit)
	if s.Cache != nil {
		var cached models.TournamentPage
		if s.Cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	// Fetch one extra row to compute has_more without a count query.
	var tournaments []models.Tournament
	err := s.DB.WithContext(ctx).
		Preload("Applicants", func(db *gorm.DB) *gorm.DB {
			return db.Order("applied_at ASC")
		}).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit + 1).
		Find(&tournaments).Error
	if err != nil {
		return nil, fmt.Errorf("fetch tournaments: %w", err)
	}

	hasMore := len(tournaments) > limit
	if hasMore {
		tournaments = tournaments[:limit]
	}
	if tournaments == nil {
		tournaments = []models.Tournament{}
	}

	result := &models.TournamentPage{
		Page:    page,
		Limit:   limit,
		HasMore: hasMore,
		Data:    tournaments,
	}
	if hasMore {
		next := page + 1
		result.NextPage = &next
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, key, result)
	}
	return result, nil
}

// GetByID fetches a single tournament with its applicants in application order.
func (s *TournamentService) GetByID(ctx context.Context, tournamentID string) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.WithContext(ctx).
		Preload("Applicants", func(db *gorm.DB) *gorm.DB {
			return db.Order("applied_at ASC")
		}).
		First(&t, "id = ?", tournamentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrTournamentNotFound
		}
		return nil, fmt.Errorf("fetch tournament: %w", err)
	}
	return &t, nil
}

// Apply records a new application for the user. The duplicate pre-check gives
// a friendly error; the unique index plus ON CONFLICT DO NOTHING closes the
// race between two concurrent applies for the same user.
func (s *TournamentService) Apply(ctx context.Context, tournamentID, userID, userName string) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrTournamentNotFound
		}
		return nil, fmt.Errorf("fetch tournament: %w", err)
	}

	if t.Deadline != nil && t.Deadline.Before(time.Now()) {
		return nil, models.ErrDeadlinePassed
	}

	var existing models.TournamentApplication
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ? AND user_id = ?", tournamentID, userID).
		First(&existing).Error
	if err == nil {
		return nil, models.ErrDuplicateApplication
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing application: %w", err)
	}

	app := models.TournamentApplication{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		UserID:       userID,
		UserName:     userName,
		Status:       models.ApplicationStatusApplied,
		AppliedAt:    time.Now(),
	}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&app)
	if res.Error != nil {
		return nil, fmt.Errorf("create application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrDuplicateApplication
	}

	s.invalidateListing(ctx)
	go s.notifyUser(t.CreatedBy, "new_application",
		fmt.Sprintf("%s applied to %s", userName, t.Title),
		map[string]interface{}{"tournament_id": t.ID, "user_id": userID})

	return s.GetByID(ctx, t.ID)
}

// ApplicationsForUser lists the tournaments the user has applied to, newest
// first, each paired with that user's own application entry.
func (s *TournamentService) ApplicationsForUser(ctx context.Context, userID string) ([]models.UserApplication, error) {
	var apps []models.TournamentApplication
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("fetch applications: %w", err)
	}
	if len(apps) == 0 {
		return []models.UserApplication{}, nil
	}

	byTournament := make(map[string]models.TournamentApplication, len(apps))
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		byTournament[a.TournamentID] = a
		ids = append(ids, a.TournamentID)
	}

	var tournaments []models.Tournament
	err := s.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at DESC").
		Find(&tournaments).Error
	if err != nil {
		return nil, fmt.Errorf("fetch applied tournaments: %w", err)
	}

	result := make([]models.UserApplication, 0, len(tournaments))
	for _, t := range tournaments {
		result = append(result, models.UserApplication{
			Tournament:  t,
			Application: byTournament[t.ID],
		})
	}
	return result, nil
}

// Decide records a selection or rejection for one applicant. Repeating the
// identical decision is an idempotent no-op; flipping a decision requires
// AllowDecisionChange. The decider must be the creator or an admin.
func (s *TournamentService) Decide(ctx context.Context, tournamentID, playerID, decision, deciderID string, deciderIsAdmin bool) (*models.Tournament, error) {
	if decision != models.ApplicationStatusSelected && decision != models.ApplicationStatusRejected {
		return nil, fmt.Errorf("%w: invalid decision %q", models.ErrValidation, decision)
	}

	var t models.Tournament
	if err := s.DB.WithContext(ctx).First(&t, "id = ?", tournamentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrTournamentNotFound
		}
		return nil, fmt.Errorf("fetch tournament: %w", err)
	}
	if t.CreatedBy != deciderID && !deciderIsAdmin {
		return nil, models.ErrForbidden
	}

	var app models.TournamentApplication
	err := s.DB.WithContext(ctx).
		Where("tournament_id = ? AND user_id = ?", tournamentID, playerID).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("fetch application: %w", err)
	}

	if app.Status == decision {
		// Idempotent repeat — no update, no re-notification.
		return s.GetByID(ctx, t.ID)
	}
	if app.Status != models.ApplicationStatusApplied && !s.AllowDecisionChange {
		return nil, models.ErrDecisionFinal
	}

	now := time.Now()
	res := s.DB.WithContext(ctx).
		Model(&models.TournamentApplication{}).
		Where("id = ? AND status = ?", app.ID, app.Status).
		Updates(map[string]interface{}{
			"status":     decision,
			"decided_at": now,
			"decided_by": deciderID,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update application: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Lost a race against a concurrent decision on the same row.
		return nil, models.ErrDecisionFinal
	}

	s.invalidateListing(ctx)

	message := fmt.Sprintf("You have been %s for %s", decision, t.Title)
	data := map[string]interface{}{
		"tournament_id": t.ID,
		"status":        decision,
		"decided_by":    deciderID,
	}
	go s.notifyUser(playerID, "application_"+decision, message, data)
	if s.Live != nil {
		s.Live.Push(playerID, "application_decision", data)
	}

	return s.GetByID(ctx, t.ID)
}

// Delete soft-deletes a tournament and invalidates the listing cache.
func (s *TournamentService) Delete(ctx context.Context, tournamentID string) error {
	res := s.DB.WithContext(ctx).Delete(&models.Tournament{}, "id = ?", tournamentID)
	if res.Error != nil {
		return fmt.Errorf("delete tournament: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrTournamentNotFound
	}
	s.invalidateListing(ctx)
	return nil
}

func (s *TournamentService) invalidateListing(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	s.Cache.InvalidatePrefix(ctx, ListingKeyPrefix)
}

// notifyUser and notifyAudience run detached from the request with their own
// timeout so a slow notification service cannot hold the response.
func (s *TournamentService) notifyUser(userID, notifType, message string, data map[string]interface{}) {
	if s.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Notifier.NotifyUser(ctx, userID, notifType, message, data)
}

func (s *TournamentService) notifyAudience(audience, notifType, message string, data map[string]interface{}) {
	if s.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Notifier.NotifyAudience(ctx, audience, notifType, message, data)
}

// --- Fiber handlers -------------------------------------------------------

func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	creatorID, _ := c.Locals("user_id").(string)
	if creatorID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	type Req struct {
		Title     string  `json:"title"`
		EntryFee  float64 `json:"entry_fee"`
		Location  string  `json:"location"`
		Type      string  `json:"type"`
		Vacancies int     `json:"vacancies"`
		Deadline  string  `json:"deadline,omitempty"` // RFC3339
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid deadline (use RFC3339)"})
		}
		deadline = &d
	}

	t, err := s.Create(c.Context(), creatorID, CreateTournamentInput{
		Title:     req.Title,
		EntryFee:  req.EntryFee,
		Location:  req.Location,
		Type:      req.Type,
		Vacancies: req.Vacancies,
		Deadline:  deadline,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (s *TournamentService) GetAllTournaments(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", defaultPageSize)

	result, err := s.ListPage(c.Context(), page, limit)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(result)
}

func (s *TournamentService) GetTournamentByID(c *fiber.Ctx) error {
	t, err := s.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(t)
}

func (s *TournamentService) ApplyToTournament(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}
	userName, _ := c.Locals("user_name").(string)

	t, err := s.Apply(c.Context(), c.Params("id"), userID, userName)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(t)
}

func (s *TournamentService) GetUserApplications(c *fiber.Ctx) error {
	apps, err := s.ApplicationsForUser(c.Context(), c.Params("user_id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(apps)
}

func (s *TournamentService) ApproveApplicant(c *fiber.Ctx) error {
	return s.decide(c, models.ApplicationStatusSelected)
}

func (s *TournamentService) RejectApplicant(c *fiber.Ctx) error {
	return s.decide(c, models.ApplicationStatusRejected)
}

func (s *TournamentService) decide(c *fiber.Ctx, decision string) error {
	deciderID, _ := c.Locals("user_id").(string)
	if deciderID == "" {
		// Fail closed: a decision without a principal is never applied.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	t, err := s.Decide(c.Context(), c.Params("id"), c.Params("player_id"), decision, deciderID, middleware.HasRole(c, "admin"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(t)
}

func (s *TournamentService) DeleteTournament(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	t, err := s.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	if t.CreatedBy != userID && !middleware.HasRole(c, "admin") {
		return s.fail(c, models.ErrForbidden)
	}

	if err := s.Delete(c.Context(), t.ID); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"deleted": t.ID})
}

// fail maps workflow errors to HTTP status codes with the shared error body.
func (s *TournamentService) fail(c *fiber.Ctx, err error) error {
	status := errStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("ERROR %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrTournamentNotFound),
		errors.Is(err, models.ErrApplicationNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrDuplicateApplication),
		errors.Is(err, models.ErrDecisionFinal):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrDeadlinePassed):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
