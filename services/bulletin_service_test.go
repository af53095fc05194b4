package services

import (
	"errors"
	"fmt"
	"testing"

	"smartbull_go/models"
)

func rosterStudent(id uint, lastName, firstName, matricule string) models.Student {
	return models.Student{
		BaseModel: models.BaseModel{ID: id},
		LastName:  lastName,
		FirstName: firstName,
		Matricule: matricule,
	}
}

func taughtSubject(id, subjectID uint, name, category string) models.ClassSubject {
	return models.ClassSubject{
		BaseModel: models.BaseModel{ID: id},
		SubjectID: subjectID,
		Subject:   models.Subject{BaseModel: models.BaseModel{ID: subjectID}, Name: name, Category: category},
	}
}

func TestMissingGradePairs(t *testing.T) {
	students := []models.Student{
		rosterStudent(1, "Abanda", "Jean", "MAT-001"),
		rosterStudent(2, "Ngono", "Estelle", "MAT-002"),
	}
	subjects := []models.ClassSubject{
		taughtSubject(10, 100, "Mathématiques", "core"),
		taughtSubject(11, 101, "Français", "core"),
	}
	fullGrades := map[gradeKey]models.Grade{
		{1, 10}: {}, {1, 11}: {},
		{2, 10}: {}, {2, 11}: {},
	}

	tests := []struct {
		name     string
		students []models.Student
		subjects []models.ClassSubject
		grades   map[gradeKey]models.Grade
		enrolled map[gradeKey]bool
		want     []MissingGrade
	}{
		{
			name:     "complete grade set reports nothing",
			students: students,
			subjects: subjects,
			grades:   fullGrades,
		},
		{
			name:     "one missing grade reports exactly that pair",
			students: students,
			subjects: subjects,
			grades: map[gradeKey]models.Grade{
				{1, 10}: {}, {1, 11}: {},
				{2, 10}: {},
			},
			want: []MissingGrade{
				{StudentID: 2, Student: "Ngono Estelle", Matricule: "MAT-002", ClassSubjectID: 11, Subject: "Français"},
			},
		},
		{
			name:     "every missing pair reported in roster order",
			students: students,
			subjects: subjects,
			grades: map[gradeKey]models.Grade{
				{1, 11}: {},
			},
			want: []MissingGrade{
				{StudentID: 1, Student: "Abanda Jean", Matricule: "MAT-001", ClassSubjectID: 10, Subject: "Mathématiques"},
				{StudentID: 2, Student: "Ngono Estelle", Matricule: "MAT-002", ClassSubjectID: 10, Subject: "Mathématiques"},
				{StudentID: 2, Student: "Ngono Estelle", Matricule: "MAT-002", ClassSubjectID: 11, Subject: "Français"},
			},
		},
		{
			name:     "optional subject exempt without an enrollment link",
			students: students,
			subjects: append(subjects, taughtSubject(12, 102, "Latin", "optional")),
			grades:   fullGrades,
		},
		{
			name:     "optional subject required once the student is linked",
			students: students,
			subjects: append(subjects, taughtSubject(12, 102, "Latin", "optional")),
			grades:   fullGrades,
			enrolled: map[gradeKey]bool{{1, 102}: true},
			want: []MissingGrade{
				{StudentID: 1, Student: "Abanda Jean", Matricule: "MAT-001", ClassSubjectID: 12, Subject: "Latin"},
			},
		},
		{
			name:     "empty roster",
			subjects: subjects,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := missingGradePairs(tc.students, tc.subjects, tc.grades, tc.enrolled)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d missing pairs, got %d: %+v", len(tc.want), len(got), got)
			}
			for i, want := range tc.want {
				if got[i] != want {
					t.Fatalf("pair %d: expected %+v, got %+v", i, want, got[i])
				}
			}
		})
	}
}

func TestMissingGradePairsAcceptsLockedGrades(t *testing.T) {
	// A regeneration run sees the locked rows of the previous run; they
	// satisfy the precondition the same way validated ones do.
	students := []models.Student{rosterStudent(1, "Abanda", "Jean", "MAT-001")}
	subjects := []models.ClassSubject{taughtSubject(10, 100, "Mathématiques", "core")}
	grades := map[gradeKey]models.Grade{
		{1, 10}: {Status: models.GradeStatusLocked},
	}
	if missing := missingGradePairs(students, subjects, grades, nil); len(missing) != 0 {
		t.Fatalf("locked grades should satisfy the sweep, got %+v", missing)
	}
}

func TestGradeLockUpdates(t *testing.T) {
	updates := gradeLockUpdates()
	if updates["status"] != models.GradeStatusLocked {
		t.Fatalf("expected status locked, got %v", updates["status"])
	}
	for column := range updates {
		if column != "status" {
			t.Fatalf("lock flip must not touch column %q: the validation audit trail stays intact", column)
		}
	}
}

func TestMissingGradesError(t *testing.T) {
	err := &MissingGradesError{
		ClassroomID: 7,
		SequenceID:  3,
		Pairs: []MissingGrade{
			{StudentID: 1, Student: "Ngono Estelle", Matricule: "MAT-001", ClassSubjectID: 4, Subject: "Mathématiques"},
			{StudentID: 2, Student: "Abanda Jean", Matricule: "MAT-002", ClassSubjectID: 5, Subject: "Français"},
		},
	}

	want := "2 validated grade(s) missing for classroom 7, sequence 3"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	var target *MissingGradesError
	wrapped := fmt.Errorf("generation failed: %w", err)
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed to unwrap MissingGradesError")
	}
	if len(target.Pairs) != 2 {
		t.Fatalf("unwrapped error lost its pairs: %d", len(target.Pairs))
	}
}

func TestMissingBulletinsError(t *testing.T) {
	err := &MissingBulletinsError{
		ClassroomID: 7,
		Pairs: []MissingBulletin{
			{StudentID: 1, Student: "Ngono Estelle", SequenceID: 3, Sequence: "S1"},
		},
	}

	want := "1 sequence bulletin(s) missing for classroom 7"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}

	var target *MissingBulletinsError
	if !errors.As(fmt.Errorf("term aggregate: %w", err), &target) {
		t.Fatal("errors.As failed to unwrap MissingBulletinsError")
	}
}

func TestLocalGenerationLock(t *testing.T) {
	key := "bulletin:lock:test:sequence:99"

	release, err := acquireGenerationLock(key)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := acquireGenerationLock(key); !errors.Is(err, ErrGenerationInProgress) {
		t.Fatalf("second acquire should report a run in progress, got %v", err)
	}

	release()

	release2, err := acquireGenerationLock(key)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release2()
}
