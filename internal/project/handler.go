package project

import (
	"obra-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

type CreateProjectRequest struct {
	Name       string `json:"name" validate:"required"`
	Department string `json:"department"`
}

// POST /api/projects
func CreateProjectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProjectRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		p, err := svc.Create(c.UserContext(), body.Name, body.Department)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// GET /api/projects
func ListProjectsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projects, err := svc.List(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(projects)
	}
}

// GET /api/projects/:id
func GetProjectHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(p)
	}
}
