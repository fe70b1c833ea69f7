package errors

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestDumpNil(t *testing.T) {
	d := Dump(nil)
	if d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("expected zero dump for nil error, got %+v", d)
	}
}

func TestDumpCarriesCodeAndChain(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeDependency, cause, "insert supplier")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected code %s, got %s", CodeDependency, d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
}

func TestDumpExtractsPQError(t *testing.T) {
	pqErr := &pq.Error{
		Code:       "23505",
		Constraint: "suppliers_email_key",
		Table:      "suppliers",
		Message:    "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, pqErr, "insert supplier")

	d := Dump(err)
	if d.PGCode != "23505" {
		t.Fatalf("expected pg code 23505, got %q", d.PGCode)
	}
	if d.PGConstraint != "suppliers_email_key" {
		t.Fatalf("expected constraint name, got %q", d.PGConstraint)
	}
	if d.PGTable != "suppliers" {
		t.Fatalf("expected table name, got %q", d.PGTable)
	}
}
