package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// success writes the uniform response envelope clients consume.
func success(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"code":    strconv.Itoa(status),
		"message": message,
		"data":    data,
	})
}

func ok(c *fiber.Ctx, message string, data any) error {
	return success(c, fiber.StatusOK, message, data)
}

func created(c *fiber.Ctx, message string, data any) error {
	return success(c, fiber.StatusCreated, message, data)
}
