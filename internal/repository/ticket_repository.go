package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	UserID     *string
	ManagerID  *string
	Unassigned bool
	Statuses   []domain.TicketStatus
	Department *domain.Department
	Search     *string
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// sortColumns whitelists sortable fields; anything else falls back to
// last_message_at to keep user input out of the ORDER BY clause.
var sortColumns = map[string]string{
	"lastMessageAt": "last_message_at",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
	"status":        "status",
	"department":    "department",
	"subject":       "subject",
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	// UpdateWithSystemMessage persists the ticket update and the system
	// message in a single transaction so a crash cannot leave a system
	// message without the matching ticket state change.
	UpdateWithSystemMessage(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.user_id, t.manager_id, t.department, t.category, t.subject,
       t.status, t.last_message_at, t.created_at, t.updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, manager_id, department, category, subject, status, last_message_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.ManagerID,
		ticket.Department,
		ticket.Category,
		ticket.Subject,
		ticket.Status,
		ticket.LastMessageAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

const ticketUpdateQuery = `
        UPDATE tickets SET manager_id=$1, department=$2, category=$3, subject=$4,
            status=$5, last_message_at=$6, updated_at=NOW()
        WHERE id=$7`

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	cmd, err := r.pool.Exec(ctx, ticketUpdateQuery,
		ticket.ManagerID,
		ticket.Department,
		ticket.Category,
		ticket.Subject,
		ticket.Status,
		ticket.LastMessageAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) UpdateWithSystemMessage(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, ticketUpdateQuery,
		ticket.ManagerID,
		ticket.Department,
		ticket.Category,
		ticket.Subject,
		ticket.Status,
		ticket.LastMessageAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	const insertMsg = `
        INSERT INTO ticket_messages (ticket_id, sender_id, body, is_system_message, system_message_type, attachments)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertMsg,
		msg.TicketID,
		msg.SenderID,
		msg.Body,
		msg.IsSystemMessage,
		msg.SystemMessageType,
		attachmentsOrEmpty(msg.Attachments),
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.ManagerID,
		&ticket.Department,
		&ticket.Category,
		&ticket.Subject,
		&ticket.Status,
		&ticket.LastMessageAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListWithFilter returns one page of tickets plus the total match count
// so services can build the {total, pages, currentPage} envelope.
func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("t.user_id=$%d", len(args)))
	}
	if filter.ManagerID != nil {
		args = append(args, *filter.ManagerID)
		clauses = append(clauses, fmt.Sprintf("t.manager_id=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "t.manager_id IS NULL")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("UPPER(t.status) IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("t.department=$%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		clauses = append(clauses, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		clauses = append(clauses, fmt.Sprintf("t.created_at <= $%d", len(args)))
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		args = append(args, search)
		ph := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(t.subject) LIKE %s OR LOWER(t.category) LIKE %s OR LOWER(u.first_name) LIKE %s OR LOWER(u.last_name) LIKE %s)",
			ph, ph, ph, ph))
	}

	where := strings.Join(clauses, " AND ")
	countQuery := `SELECT COUNT(*) FROM tickets t LEFT JOIN users u ON u.id = t.user_id WHERE ` + where

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortColumn, ok := sortColumns[filter.SortBy]
	if !ok {
		sortColumn = "last_message_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "ASC") {
		sortOrder = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		`SELECT %s FROM tickets t LEFT JOIN users u ON u.id = t.user_id WHERE %s ORDER BY t.%s %s LIMIT %d OFFSET %d`,
		ticketColumns, where, sortColumn, sortOrder, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

// ListInactiveSince returns every non-archived ticket whose last message
// predates the cutoff; consumed by the archive sweep.
func (r *ticketRepository) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets t
        WHERE t.last_message_at < $1 AND t.status <> $2
        ORDER BY t.last_message_at ASC`
	rows, err := r.pool.Query(ctx, query, cutoff, domain.TicketStatusArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.UserID,
			&ticket.ManagerID,
			&ticket.Department,
			&ticket.Category,
			&ticket.Subject,
			&ticket.Status,
			&ticket.LastMessageAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func attachmentsOrEmpty(attachments []domain.Attachment) []domain.Attachment {
	if attachments == nil {
		return []domain.Attachment{}
	}
	return attachments
}
