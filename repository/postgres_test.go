package repository

import (
	"testing"

	"github.com/BerniceZTT/crm_sync/models"
)

func TestCustomerAssignments(t *testing.T) {
	cols, args := customerAssignments(models.CustomerPatch{
		Status:        strPtr("contacted"),
		AssignedAgent: models.Unassign(),
	})

	want := []string{"status = $1", "assigned_agent = $2"}
	if len(cols) != len(want) {
		t.Fatalf("cols = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("cols[%d] = %q, want %q", i, cols[i], want[i])
		}
	}
	if args[0] != "contacted" {
		t.Errorf("args[0] = %v", args[0])
	}
	if p, ok := args[1].(*string); !ok || p != nil {
		t.Errorf("unassign should bind a nil *string, got %#v", args[1])
	}
}

func TestCustomerAssignmentsEmpty(t *testing.T) {
	cols, args := customerAssignments(models.CustomerPatch{})
	if len(cols) != 0 || len(args) != 0 {
		t.Errorf("expected no assignments, got %v %v", cols, args)
	}
}

func TestAgentAssignments(t *testing.T) {
	tickets := 4
	cols, args := agentAssignments(models.AgentPatch{Name: strPtr("Bob"), ActiveTickets: &tickets})
	if len(cols) != 2 || cols[0] != "name = $1" || cols[1] != "active_tickets = $2" {
		t.Errorf("cols = %v", cols)
	}
	if args[1] != 4 {
		t.Errorf("args[1] = %v, want 4", args[1])
	}
}
