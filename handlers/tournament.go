package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/VALX-GALAXY/SportsInn-sub001/middleware"
	"github.com/VALX-GALAXY/SportsInn-sub001/services"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService, hub *services.LiveHub) {
	// 🔓 Public routes — registered before the secured group so the user
	// context middleware never runs for them
	app.Get("/tournaments", tournamentService.GetAllTournaments)
	app.Get("/tournaments/applications/:user_id", tournamentService.GetUserApplications)
	app.Get("/tournaments/:id", tournamentService.GetTournamentByID)

	// 🔐 Authenticated routes
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Tournament lifecycle (academies and admins only)
	secured.Post("/tournaments", middleware.RequireRoles("admin", "academy"), tournamentService.CreateTournament)
	secured.Delete("/tournaments/:id", middleware.RequireRoles("admin", "academy"), tournamentService.DeleteTournament)

	// Applications
	secured.Post("/tournaments/:id/apply", tournamentService.ApplyToTournament)

	// Decisions — creator or admin, enforced in the workflow
	secured.Put("/tournaments/:id/applicants/:player_id/approve", tournamentService.ApproveApplicant)
	secured.Put("/tournaments/:id/applicants/:player_id/reject", tournamentService.RejectApplicant)

	// Live delivery hint for decision events
	secured.Get("/events/stream", hub.StreamEvents)
}
