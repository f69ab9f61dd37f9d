package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation_PgconnError(t *testing.T) {
	violation := &pgconn.PgError{Code: "23505", ConstraintName: "uq_commission_dedupe"}

	if !IsUniqueViolation(violation, "") {
		t.Fatal("expected 23505 to match without a constraint filter")
	}
	if !IsUniqueViolation(violation, "uq_commission_dedupe") {
		t.Fatal("expected 23505 to match its own constraint")
	}
	if IsUniqueViolation(violation, "uq_members_placement_slot") {
		t.Fatal("expected a different constraint not to match")
	}

	wrapped := fmt.Errorf("create entry: %w", violation)
	if !IsUniqueViolation(wrapped, "uq_commission_dedupe") {
		t.Fatal("expected wrapped pg error to match")
	}

	// Same constraint name in the text of a non-unique error must not match.
	notNull := &pgconn.PgError{Code: "23502", ConstraintName: "uq_commission_dedupe"}
	if IsUniqueViolation(notNull, "uq_commission_dedupe") {
		t.Fatal("expected non-23505 code not to match")
	}
}

func TestIsUniqueViolation_PqError(t *testing.T) {
	violation := &pq.Error{Code: "23505", Constraint: "ux_outbox_events_event_aggregate"}

	if !IsUniqueViolation(violation, "ux_outbox_events_event_aggregate") {
		t.Fatal("expected pq 23505 to match its constraint")
	}
	if IsUniqueViolation(violation, "other_constraint") {
		t.Fatal("expected a different constraint not to match")
	}
}

func TestIsUniqueViolation_MessageFallback(t *testing.T) {
	sqliteErr := errors.New("UNIQUE constraint failed: processed_events.event_id")
	if !IsUniqueViolation(sqliteErr, "") {
		t.Fatal("expected sqlite unique violation text to match")
	}
	if !IsUniqueViolation(sqliteErr, "processed_events") {
		t.Fatal("expected sqlite text to match a named table")
	}
	if IsUniqueViolation(sqliteErr, "uq_commission_dedupe") {
		t.Fatal("expected unrelated constraint not to match")
	}

	if IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("expected unrelated error not to match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("expected nil error not to match")
	}
}
