package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/openmat/openmat-api/handlers"
	"github.com/openmat/openmat-api/middleware"
	"github.com/openmat/openmat-api/models"
)

// SetupRoutes mounts the full HTTP surface on the router.
func SetupRoutes(
	router *chi.Mux,
	authHandler *handlers.AuthHandler,
	eventHandler *handlers.EventHandler,
	registrationHandler *handlers.RegistrationHandler,
	bracketHandler *handlers.BracketHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate([]byte(jwtSecret))
	organizerOnly := middleware.Authorize(models.RoleOrganizer, models.RoleAdmin)
	athleteOnly := middleware.Authorize(models.RoleAthlete, models.RoleAdmin)

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/events", func(r chi.Router) {
		// Public browsing
		r.Get("/", eventHandler.List)
		r.Get("/{eventID}", eventHandler.Get)
		r.Get("/{eventID}/categories", eventHandler.ListCategories)

		// Organizer management
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/", eventHandler.Create)
			r.Put("/{eventID}", eventHandler.Update)
			r.Delete("/{eventID}", eventHandler.Delete)
			r.Post("/{eventID}/poster", eventHandler.UploadPoster)

			r.Post("/{eventID}/categories", eventHandler.AddCategory)
			r.Delete("/{eventID}/categories/{categoryID}", eventHandler.DeleteCategory)

			// Bracket lifecycle
			r.Post("/{eventID}/stop-registrations", bracketHandler.StopRegistrations)
			r.Post("/{eventID}/reopen-registrations", bracketHandler.ReopenRegistrations)
			r.Get("/{eventID}/categories/{categoryID}/bracket", bracketHandler.GetBracket)
		})

		// Athlete inscriptions
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(athleteOnly)

			r.Post("/{eventID}/categories/{categoryID}/registrations", registrationHandler.Register)
		})
	})

	router.Route("/registrations", func(r chi.Router) {
		r.Use(authenticate)

		r.With(organizerOnly).Post("/{registrationID}/confirm-payment", registrationHandler.ConfirmPayment)
		r.With(athleteOnly).Delete("/{registrationID}", registrationHandler.Cancel)
	})

	// Live bracket updates, one room per event.
	router.Get("/ws/events/{eventID}", webSocketHandler.ServeEventFeed)
}
