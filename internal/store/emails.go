package store

import (
	"context"
	"database/sql"
	"fmt"

	"intake-service/internal/models"
)

// CreateInboundEmail persists a freshly received email.
func (s *Store) CreateInboundEmail(ctx context.Context, email *models.InboundEmail) error {
	query := `
		INSERT INTO inbound_emails
			(vendor, sender, subject, html_body, plain_body, content_hash, account_id, parse_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, received_at`

	return s.db.GetContext(ctx, email, query,
		email.Vendor, email.Sender, email.Subject, email.HTMLBody, email.PlainBody,
		email.ContentHash, email.AccountID, email.ParseStatus)
}

// GetEmailByID retrieves an inbound email by ID
func (s *Store) GetEmailByID(ctx context.Context, id int64) (*models.InboundEmail, error) {
	var email models.InboundEmail
	err := s.db.GetContext(ctx, &email, "SELECT * FROM inbound_emails WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("email %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &email, nil
}

// GetEmailByContentHash retrieves an email by its content hash. Returns
// (nil, nil) when none exists; this backs dedup when Redis has forgotten.
func (s *Store) GetEmailByContentHash(ctx context.Context, hash string) (*models.InboundEmail, error) {
	var email models.InboundEmail
	err := s.db.GetContext(ctx, &email, "SELECT * FROM inbound_emails WHERE content_hash = $1", hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &email, nil
}

// ListEmails retrieves recent inbound emails, optionally filtered to one
// parse status (the review surface filters on pending/failed/unknown_vendor).
func (s *Store) ListEmails(ctx context.Context, status string, limit int) ([]models.InboundEmail, error) {
	if limit <= 0 {
		limit = 50
	}

	var emails []models.InboundEmail
	if status == "" {
		err := s.db.SelectContext(ctx, &emails,
			"SELECT * FROM inbound_emails ORDER BY received_at DESC LIMIT $1", limit)
		return emails, err
	}
	err := s.db.SelectContext(ctx, &emails,
		"SELECT * FROM inbound_emails WHERE parse_status = $1 ORDER BY received_at DESC LIMIT $2",
		status, limit)
	return emails, err
}

// SetEmailParseResult attaches parse results to an email. This is the one
// mutation an InboundEmail sees after creation.
func (s *Store) SetEmailParseResult(ctx context.Context, emailID int64, vendor, status, parseError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE inbound_emails
		SET vendor = $1, parse_status = $2, parse_error = $3, parsed_at = NOW()
		WHERE id = $4`,
		vendor, status, parseError, emailID)
	return err
}

// DeleteEmail removes an email, its items, and any of its orders left with
// no items. Orders that merged items from other emails survive.
func (s *Store) DeleteEmail(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM inventory_items WHERE email_id = $1", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM orders
		WHERE email_id = $1
		  AND NOT EXISTS (SELECT 1 FROM inventory_items WHERE order_id = orders.id)`, id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM inbound_emails WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("email %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}
