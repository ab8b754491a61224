package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpNamesAppointmentInvariant(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_bills_appointment_id", TableName: "bills", Message: "duplicate key value"}
	err := Wrap(CodeDependency, fmt.Errorf("insert bill: %w", pgErr), "create bill")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if d.PG == nil || d.PG.Code != "23505" || d.PG.Table != "bills" {
		t.Fatalf("unexpected pg fields: %+v", d.PG)
	}
	if d.Invariant != "one bill per appointment" {
		t.Fatalf("unexpected invariant %q", d.Invariant)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}
}

func TestDumpNamesWalletFloorFromPq(t *testing.T) {
	err := fmt.Errorf("update wallet: %w", &pq.Error{Code: "23514", Constraint: "ck_members_balance_non_negative", Table: "members"})

	d := Dump(err)
	if d.Invariant != "wallet balance floor" {
		t.Fatalf("unexpected invariant %q", d.Invariant)
	}
	if d.Code != "" {
		t.Fatalf("expected no typed code, got %s", d.Code)
	}
	fields := d.Fields()
	if fields["pg_constraint"] != "ck_members_balance_non_negative" || fields["invariant"] != "wallet balance floor" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg values should be omitted: %v", fields)
	}
}

func TestDumpWithoutPostgresError(t *testing.T) {
	d := Dump(New(CodeInsufficient, "insufficient stored value"))
	if d.PG != nil || d.Invariant != "" {
		t.Fatalf("unexpected pg diagnostics: %+v", d)
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatalf("pg_code should be absent")
	}
}
