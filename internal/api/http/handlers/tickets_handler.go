package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages ticket endpoints for clients and staff.
type TicketsHandler struct {
	service   *service.TicketService
	uploadDir string
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, uploadDir string) *TicketsHandler {
	return &TicketsHandler{service: ticketService, uploadDir: uploadDir}
}

// CreateTicket POST /tickets. Accepts JSON or multipart with
// "attachments" file parts.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.Department == "" || req.Subject == "" || req.Message == "" {
		return util.NewBadRequest("department, subject and message are required")
	}

	attachments, err := h.storeUploads(c)
	if err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		UserID:      principal.User.ID,
		Department:  req.Department,
		Category:    req.Category,
		Subject:     req.Subject,
		Body:        req.Message,
		Attachments: attachments,
	})
	if err != nil {
		return err
	}
	return created(c, "ticket created", dto.NewTicketResponse(ticket))
}

// ListTickets GET /tickets. Administrative listing over every ticket.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	page, err := h.service.ListTickets(c.UserContext(), parseListOptions(c))
	if err != nil {
		return err
	}
	return ok(c, "tickets", dto.NewTicketPageResponse(page))
}

// MyTickets GET /tickets/my.
func (h *TicketsHandler) MyTickets(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	page, err := h.service.GetClientTickets(c.UserContext(), principal.User.ID, parseListOptions(c))
	if err != nil {
		return err
	}
	return ok(c, "tickets", dto.NewTicketPageResponse(page))
}

// MyArchivedTickets GET /tickets/my/archived.
func (h *TicketsHandler) MyArchivedTickets(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	page, err := h.service.GetClientArchivedTickets(c.UserContext(), principal.User.ID, parseListOptions(c))
	if err != nil {
		return err
	}
	return ok(c, "archived tickets", dto.NewTicketPageResponse(page))
}

// AssignedTickets GET /tickets/assigned.
func (h *TicketsHandler) AssignedTickets(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	page, err := h.service.GetAssignedTickets(c.UserContext(), principal.User.ID, parseListOptions(c))
	if err != nil {
		return err
	}
	return ok(c, "assigned tickets", dto.NewTicketPageResponse(page))
}

// UnassignedTickets GET /tickets/unassigned.
func (h *TicketsHandler) UnassignedTickets(c *fiber.Ctx) error {
	page, err := h.service.GetUnassignedTickets(c.UserContext(), parseListOptions(c))
	if err != nil {
		return err
	}
	return ok(c, "unassigned tickets", dto.NewTicketPageResponse(page))
}

// OpenTickets GET /tickets/open.
func (h *TicketsHandler) OpenTickets(c *fiber.Ctx) error {
	page, err := h.service.GetOpenTickets(c.UserContext(), parseListOptions(c))
	if err != nil {
		return err
	}
	return ok(c, "open tickets", dto.NewTicketPageResponse(page))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	details, err := h.service.GetTicketDetails(c.UserContext(),
		c.Params("id"), principal.User.ID, principal.User.Role.IsAdministrative())
	if err != nil {
		return err
	}
	return ok(c, "ticket", dto.NewTicketDetailsResponse(details))
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.AddMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}

	attachments, err := h.storeUploads(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" && len(attachments) == 0 {
		return util.NewBadRequest("message or attachments required")
	}

	msg, err := h.service.AddMessage(c.UserContext(), service.AddMessageInput{
		TicketID:    c.Params("id"),
		SenderID:    principal.User.ID,
		Body:        req.Message,
		Attachments: attachments,
	})
	if err != nil {
		return err
	}
	return created(c, "message added", dto.NewMessageResponse(msg))
}

// AssignTicket PATCH /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.ManagerID == "" {
		return util.NewBadRequest("managerId is required")
	}
	ticket, err := h.service.AssignManager(c.UserContext(), c.Params("id"), req.ManagerID)
	if err != nil {
		return err
	}
	return ok(c, "ticket assigned", dto.NewTicketResponse(ticket))
}

// TakeTicket PATCH /tickets/:id/take. Assigns the ticket to the caller.
func (h *TicketsHandler) TakeTicket(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	ticket, err := h.service.AssignManager(c.UserContext(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return ok(c, "ticket assigned", dto.NewTicketResponse(ticket))
}

// Reassign PATCH /tickets/:id/reassign.
func (h *TicketsHandler) Reassign(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.ReassignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	if req.ManagerID == "" {
		return util.NewBadRequest("managerId is required")
	}
	ticket, err := h.service.ReassignTicket(c.UserContext(),
		c.Params("id"), req.ManagerID, principal.User.ID, req.Reason, req.Priority)
	if err != nil {
		return err
	}
	return ok(c, "ticket reassigned", dto.NewTicketResponse(ticket))
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewBadRequest("invalid payload")
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), principal.User.ID, req.Status)
	if err != nil {
		return err
	}
	return ok(c, "status updated", dto.NewTicketResponse(ticket))
}

// Attachment GET /tickets/:id/messages/:messageId/attachments/:filename.
// Streams the file inline; ?download=true forces a download.
func (h *TicketsHandler) Attachment(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	file, err := h.service.OpenAttachment(c.UserContext(),
		c.Params("id"), c.Params("messageId"), c.Params("filename"),
		principal.User.ID, principal.User.Role.IsAdministrative())
	if err != nil {
		return err
	}

	disposition := "inline"
	if c.QueryBool("download") {
		disposition = "attachment"
	}
	c.Set(fiber.HeaderContentType, file.MimeType)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`%s; filename="%s"`, disposition, file.OriginalName))
	return c.SendFile(file.AbsolutePath)
}

// storeUploads saves the "attachments" parts of a multipart request
// under generated names and returns their metadata. JSON requests
// simply yield no files.
func (h *TicketsHandler) storeUploads(c *fiber.Ctx) ([]domain.Attachment, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	files := form.File["attachments"]
	if len(files) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return nil, util.NewInternalError(err)
	}

	attachments := make([]domain.Attachment, 0, len(files))
	for _, file := range files {
		stored, err := h.storeUpload(c, file)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, stored)
	}
	return attachments, nil
}

func (h *TicketsHandler) storeUpload(c *fiber.Ctx, file *multipart.FileHeader) (domain.Attachment, error) {
	filename := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	path := filepath.Join(h.uploadDir, filename)
	if err := c.SaveFile(file, path); err != nil {
		return domain.Attachment{}, util.NewInternalError(err)
	}
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return domain.Attachment{
		Filename:     filename,
		OriginalName: file.Filename,
		MimeType:     mimeType,
		Size:         file.Size,
		Path:         path,
	}, nil
}

func parseListOptions(c *fiber.Ctx) service.ListOptions {
	opts := service.ListOptions{
		Page:      c.QueryInt("page", 1),
		Limit:     c.QueryInt("limit", 10),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if search := c.Query("search"); search != "" {
		opts.Search = &search
	}
	if raw := c.Query("department"); raw != "" {
		if department, ok := domain.ParseDepartment(raw); ok {
			opts.Department = &department
		}
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if status, ok := domain.NormalizeStatus(part); ok {
				opts.Statuses = append(opts.Statuses, status)
			}
		}
	}
	if raw := c.Query("dateFrom"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			opts.DateFrom = &t
		}
	}
	if raw := c.Query("dateTo"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			opts.DateTo = &t
		}
	}
	return opts
}
