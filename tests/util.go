package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/vidyalaya/core/access"
	"github.com/trezcool/vidyalaya/core/grade"
	"github.com/trezcool/vidyalaya/core/student"
)

const TestSecret = "promote-me-2081"

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name string,
	lvl grade.Level,
	section, fatherPhone string,
	createdAt ...time.Time,
) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	st := student.Student{
		Name:        name,
		Grade:       lvl,
		Section:     section,
		FatherName:  "Father of " + name,
		FatherPhone: fatherPhone,
		Email:       student.GenerateEmail(name, "students.test"),
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	st, err := repo.CreateStudent(context.Background(), st)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

// SecretHash returns the bcrypt hash of TestSecret.
func SecretHash(t *testing.T) string {
	hash, err := access.HashSecret(TestSecret)
	if err != nil {
		t.Fatalf("SecretHash() failed: %v", err)
	}
	return hash
}

func Admin() access.Principal {
	return access.Principal{ID: "admin-1", Username: "principal", Roles: []string{access.RoleAdminPrincipal}}
}

func Teacher() access.Principal {
	return access.Principal{ID: "teacher-1", Username: "teacher", Roles: []string{access.RoleTeacher}}
}
