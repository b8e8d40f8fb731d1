package explore

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"backend-fogtrek/internal/shared/geo"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/:deviceID/fixes", authMiddleware, func(c *fiber.Ctx) error {
		var req FixRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fix := geo.GeoFix{Lat: req.Lat, Lng: req.Lng, Timestamp: req.Timestamp}
		result, err := svc.OfferFix(c.Context(), c.Params("deviceID"), fix)
		if errors.Is(err, ErrInvalidFix) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		status := fiber.StatusOK
		if result.Accepted {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(result)
	})

	r.Get("/:deviceID/stats", func(c *fiber.Ctx) error {
		summary, err := svc.Summary(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Get("/:deviceID/fixes", func(c *fiber.Ctx) error {
		classified, err := svc.ClassifiedHistory(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(classified)
	})

	r.Post("/:deviceID/sessions", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.StartSession(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(summary)
	})

	r.Post("/:deviceID/sessions/end", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.EndSession(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Post("/:deviceID/sessions/pause", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.Pause(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Post("/:deviceID/sessions/resume", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.Resume(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Post("/:deviceID/recalculate", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.Recalculate(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Post("/:deviceID/rebuild", authMiddleware, func(c *fiber.Ctx) error {
		summary, err := svc.Rebuild(c.Context(), c.Params("deviceID"))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(summary)
	})

	r.Delete("/:deviceID/history", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.ClearHistory(c.Context(), c.Params("deviceID")); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
