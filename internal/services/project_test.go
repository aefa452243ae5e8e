package services

import (
	"errors"
	"testing"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/response"
)

func TestProjectService_Create_CreatorIsOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")

	project, err := NewProjectService(db).Create(alice.ID, &CreateProjectRequest{Name: "  Alpha ", Description: "first"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if project.Name != "Alpha" {
		t.Errorf("Name = %q, expected trimmed Alpha", project.Name)
	}
	if project.Owner.ID != alice.ID {
		t.Errorf("Owner.ID = %d, expected %d", project.Owner.ID, alice.ID)
	}
	if project.MemberCount != 1 {
		t.Fatalf("MemberCount = %d, expected 1", project.MemberCount)
	}
	if project.Members[0].Role != models.MemberRoleOwner {
		t.Errorf("creator role = %q, expected OWNER", project.Members[0].Role)
	}
}

func TestProjectService_Create_Validation(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")

	_, err := NewProjectService(db).Create(alice.ID, &CreateProjectRequest{Name: "A"})
	if !errors.Is(err, response.ErrValidation) {
		t.Errorf("expected VALIDATION_FAILED for short name, got %v", err)
	}
}

func TestProjectService_MemberReadsOwnerMutates(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	carol := createUser(t, db, "carol@example.com", "Carol")
	alpha := createProject(t, db, alice, "Alpha", bob)

	svc := NewProjectService(db)

	got, err := svc.GetByID(bob.ID, alpha.ID)
	if err != nil {
		t.Fatalf("member GetByID() error = %v", err)
	}
	if got.MemberCount != 2 {
		t.Errorf("MemberCount = %d, expected 2", got.MemberCount)
	}

	if _, err := svc.GetByID(carol.ID, alpha.ID); !errors.Is(err, response.ErrForbidden) {
		t.Errorf("non-member GetByID: expected FORBIDDEN, got %v", err)
	}
	if _, err := svc.GetByID(alice.ID, 9999); !errors.Is(err, response.ErrNotFound) {
		t.Errorf("missing project: expected NOT_FOUND, got %v", err)
	}

	if _, err := svc.Update(bob.ID, alpha.ID, &UpdateProjectRequest{Name: "Beta"}); !errors.Is(err, response.ErrForbidden) {
		t.Errorf("member Update: expected FORBIDDEN, got %v", err)
	}
	if err := svc.Delete(bob.ID, alpha.ID); !errors.Is(err, response.ErrForbidden) {
		t.Errorf("member Delete: expected FORBIDDEN, got %v", err)
	}
}

func TestProjectService_Update_Partial(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	svc := NewProjectService(db)

	project, err := svc.Create(alice.ID, &CreateProjectRequest{Name: "Alpha", Description: "keep me"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.Update(alice.ID, project.ID, &UpdateProjectRequest{Name: "Alpha v2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Alpha v2" {
		t.Errorf("Name = %q, expected Alpha v2", updated.Name)
	}
	if updated.Description != "keep me" {
		t.Errorf("Description = %q, empty field should not clear it", updated.Description)
	}
}

func TestProjectService_List(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	createProject(t, db, alice, "Alpha", bob)
	createProject(t, db, alice, "Private")
	createProject(t, db, bob, "Bobs")

	items, err := NewProjectService(db).List(bob.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 projects for bob, got %d", len(items))
	}

	for _, it := range items {
		switch it.Name {
		case "Alpha":
			if it.OwnerName != "Alice" || it.MemberCount != 2 {
				t.Errorf("Alpha = %+v, expected owner Alice with 2 members", it)
			}
		case "Bobs":
			if it.MemberCount != 1 {
				t.Errorf("Bobs MemberCount = %d, expected 1", it.MemberCount)
			}
		default:
			t.Errorf("unexpected project %q", it.Name)
		}
	}
}

func TestProjectService_Delete_Cascades(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	alpha := createProject(t, db, alice, "Alpha", bob)
	insertTask(t, db, alpha.ID, "one", models.TaskStatusTodo, models.TaskPriorityLow, nil, nil)
	insertTask(t, db, alpha.ID, "two", models.TaskStatusDone, models.TaskPriorityHigh, nil, &bob.ID)

	if err := NewProjectService(db).Delete(alice.ID, alpha.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var tasks, members int64
	db.Model(&models.Task{}).Where("project_id = ?", alpha.ID).Count(&tasks)
	db.Model(&models.ProjectMember{}).Where("project_id = ?", alpha.ID).Count(&members)
	if tasks != 0 {
		t.Errorf("expected tasks to be deleted with the project, %d remain", tasks)
	}
	if members != 0 {
		t.Errorf("expected memberships to be deleted with the project, %d remain", members)
	}
}

func TestProjectService_AddMember(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	alpha := createProject(t, db, alice, "Alpha")
	svc := NewProjectService(db)

	member, err := svc.AddMember(alice.ID, alpha.ID, &AddMemberRequest{UserID: bob.ID})
	if err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if member.Role != models.MemberRoleMember {
		t.Errorf("Role = %q, expected MEMBER", member.Role)
	}

	tests := []struct {
		name    string
		actor   uint
		userID  uint
		wantErr error
	}{
		{"duplicate", alice.ID, bob.ID, response.ErrConflict},
		{"owner again", alice.ID, alice.ID, response.ErrConflict},
		{"unknown user", alice.ID, 9999, response.ErrNotFound},
		{"not the owner", bob.ID, bob.ID, response.ErrForbidden},
		{"missing user id", alice.ID, 0, response.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddMember(tt.actor, alpha.ID, &AddMemberRequest{UserID: tt.userID})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestProjectService_RemoveMember(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	bob := createUser(t, db, "bob@example.com", "Bob")
	carol := createUser(t, db, "carol@example.com", "Carol")
	alpha := createProject(t, db, alice, "Alpha", bob)
	task := insertTask(t, db, alpha.ID, "bobs task", models.TaskStatusTodo, models.TaskPriorityLow, nil, &bob.ID)
	svc := NewProjectService(db)

	if err := svc.RemoveMember(alice.ID, alpha.ID, alice.ID); !errors.Is(err, response.ErrForbidden) {
		t.Errorf("removing owner: expected FORBIDDEN, got %v", err)
	}
	if err := svc.RemoveMember(bob.ID, alpha.ID, bob.ID); !errors.Is(err, response.ErrForbidden) {
		t.Errorf("non-owner removing: expected FORBIDDEN, got %v", err)
	}
	if err := svc.RemoveMember(alice.ID, alpha.ID, carol.ID); !errors.Is(err, response.ErrNotFound) {
		t.Errorf("removing non-member: expected NOT_FOUND, got %v", err)
	}

	if err := svc.RemoveMember(alice.ID, alpha.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}

	members, err := svc.ListMembers(alice.ID, alpha.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 {
		t.Errorf("expected only the owner to remain, got %d members", len(members))
	}

	var reloaded models.Task
	if err := db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.AssigneeID != nil {
		t.Errorf("task assignee should be cleared, got %d", *reloaded.AssigneeID)
	}
}

func TestProjectService_ListMembers_RequiresMembership(t *testing.T) {
	db := newTestDB(t)
	alice := createUser(t, db, "alice@example.com", "Alice")
	carol := createUser(t, db, "carol@example.com", "Carol")
	alpha := createProject(t, db, alice, "Alpha")

	if _, err := NewProjectService(db).ListMembers(carol.ID, alpha.ID); !errors.Is(err, response.ErrForbidden) {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}
