package router

import (
	"github.com/gofiber/fiber/v2"

	handlers "github.com/jordanmellermagic/Sensus-API/internal/http"
	"github.com/jordanmellermagic/Sensus-API/internal/profile"
	"github.com/jordanmellermagic/Sensus-API/internal/subscription"
)

type Router struct {
	AuthHandler    *handlers.AuthHandler
	ProfileHandler *profile.Handler
	SubsHandler    *subscription.Handler
	AuthMW         fiber.Handler
	AdminMW        fiber.Handler
	WriteLimit     fiber.Handler
}

func (r *Router) RegisterRoutes(app *fiber.App) {
	if r.AuthHandler != nil {
		app.Post("/api/auth/register", RateLimitAuth(), r.AuthHandler.Register)
		app.Post("/api/auth/login", RateLimitAuth(), r.AuthHandler.Login)
	}

	if r.ProfileHandler != nil {
		user := app.Group("/api/user/:user_id", r.AuthMW)
		user.Get("/", r.ProfileHandler.GetUser)
		user.Post("/", r.WriteLimit, r.ProfileHandler.SetUser)
		user.Delete("/", r.ProfileHandler.DeleteUser)

		user.Get("/peek/:peek", r.ProfileHandler.GetPeek)
		user.Patch("/peek/:peek", r.WriteLimit, r.ProfileHandler.PatchPeek)
		user.Delete("/peek/:peek", r.ProfileHandler.ClearPeek)

		user.Get("/birthday", r.ProfileHandler.GetBirthday)
		user.Get("/screenshot", r.ProfileHandler.GetScreenshot)

		if r.SubsHandler != nil {
			user.Post("/subscriptions", r.WriteLimit, r.SubsHandler.Create)
			user.Get("/subscriptions", r.SubsHandler.List)
			user.Delete("/subscriptions/:id", r.SubsHandler.Delete)

			user.Get("/preferences", r.SubsHandler.GetPreferences)
			user.Put("/preferences", r.WriteLimit, r.SubsHandler.SetPreferences)
		}
	}

	if r.ProfileHandler != nil && r.AdminMW != nil {
		app.Post("/api/admin/users/:user_id", r.AdminMW, r.ProfileHandler.CreateUser)
	}
}
